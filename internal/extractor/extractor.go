// Package extractor turns statement files into cleaned transactions with a
// single language-model call.
package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/dvloznov/budget-companion/internal/domain"
	"github.com/dvloznov/budget-companion/internal/llm"
	"github.com/dvloznov/budget-companion/internal/logger"
)

// Result is the outcome of one extraction with counters for telemetry.
type Result struct {
	Transactions []domain.Transaction

	// Fallback is set when the whole call degraded to an empty result.
	Fallback domain.FallbackReason

	Candidates    int // elements in the model's array
	Dropped       int // elements discarded by validation or cleaning
	DateFallbacks int // records whose date was replaced with the current time
}

// Extractor is safe for concurrent use.
type Extractor struct {
	client llm.Client
	now    func() time.Time
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithClock overrides the time source used for unparseable dates.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) {
		e.now = now
	}
}

// New creates an Extractor on top of client.
func New(client llm.Client, opts ...Option) *Extractor {
	e := &Extractor{
		client: client,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the cleaned transactions found in content. It never fails:
// transport errors and unusable model output both yield an empty slice.
func (e *Extractor) Extract(ctx context.Context, content, filename string) []domain.Transaction {
	return e.ExtractDetailed(ctx, content, filename).Transactions
}

// ExtractDetailed is Extract with counters describing what was discarded.
func (e *Extractor) ExtractDetailed(ctx context.Context, content, filename string) Result {
	log := logger.FromContext(ctx)
	res := Result{Transactions: []domain.Transaction{}}

	raw, err := e.client.Complete(ctx, llm.Request{
		System:      systemInstruction,
		Prompt:      buildExtractionPrompt(content, filename),
		Temperature: temperature,
		MaxTokens:   maxOutputTokens,
	})
	if err != nil {
		log.Error().Err(err).Str("filename", filename).Msg("Extraction request failed")
		res.Fallback = domain.FallbackTransportError
		return res
	}

	elems, err := decodeArray(llm.CleanJSON(raw))
	if err != nil {
		log.Warn().Err(err).Str("filename", filename).Str("raw_response", raw).Msg("Failed to parse extraction response")
		res.Fallback = domain.FallbackMalformedResponse
		return res
	}

	res.Candidates = len(elems)
	now := e.now()

	for i, elem := range elems {
		obj, ok := elem.(map[string]interface{})
		if !ok || !hasRequiredFields(obj) {
			res.Dropped++
			log.Debug().Int("index", i).Msg("Discarding element without required fields")
			continue
		}

		tx, dateFallback, err := cleanRecord(obj, now)
		if err != nil {
			res.Dropped++
			log.Debug().Err(err).Int("index", i).Msg("Discarding element that failed cleaning")
			continue
		}
		if dateFallback {
			res.DateFallbacks++
			log.Warn().Int("index", i).Interface("date", obj["date"]).Msg("Unparseable date, using current time")
		}

		res.Transactions = append(res.Transactions, tx)
	}

	log.Info().
		Str("filename", filename).
		Int("candidates", res.Candidates).
		Int("kept", len(res.Transactions)).
		Int("dropped", res.Dropped).
		Int("date_fallbacks", res.DateFallbacks).
		Msg("Extraction finished")

	return res
}

var errNotArray = errors.New("model output is not a JSON array")

// decodeArray parses s as exactly one JSON array. Numbers are kept as
// json.Number so amounts are not rounded before cleaning.
func decodeArray(s string) ([]interface{}, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("trailing data after JSON value")
	}

	arr, ok := v.([]interface{})
	if !ok {
		return nil, errNotArray
	}
	return arr, nil
}
