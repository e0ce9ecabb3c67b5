package categorizer

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	systemInstruction = "You are a financial categorization expert. Return only valid JSON."

	temperature     = 0.1
	maxOutputTokens = 200
)

// formatAmount renders the absolute amount as dollars with two decimals.
func formatAmount(amount float64) string {
	return "$" + decimal.NewFromFloat(amount).Abs().StringFixed(2)
}

func buildCategorizationPrompt(description string, amount float64, names []string) string {
	return fmt.Sprintf(
		"Categorize this financial transaction:\n\n"+
			"Description: %q\n"+
			"Amount: %s\n\n"+
			"Available categories: %s\n\n"+
			"Return JSON in this exact format:\n"+
			"{\n"+
			"  \"category\": \"category_name\",\n"+
			"  \"confidence\": 0.95,\n"+
			"  \"reasoning\": \"brief explanation why this category fits\"\n"+
			"}\n\n"+
			"Rules:\n"+
			"- Choose the most appropriate category from the available list\n"+
			"- Confidence should be 0.0 to 1.0 (1.0 = completely certain)\n"+
			"- If confidence is below 0.7, the transaction will need manual review\n"+
			"- Use \"Other\" if no category fits well\n"+
			"- Only return valid JSON, no explanations\n",
		description, formatAmount(amount), strings.Join(names, ", "),
	)
}
