package extractor

import "fmt"

const (
	systemInstruction = "You are a financial data extraction expert. Return only valid JSON."

	temperature = 0.1

	// maxOutputTokens leaves room for statements with many lines.
	maxOutputTokens = 4000
)

func buildExtractionPrompt(content, filename string) string {
	return fmt.Sprintf(
		"Extract all financial transactions from this file content. "+
			"The file may be CSV, TXT, PDF text, or any other format.\n\n"+
			"File name: %s\n"+
			"File content:\n%s\n\n"+
			"Return a JSON array with transactions in this exact format:\n"+
			"[\n"+
			"  {\n"+
			"    \"date\": \"YYYY-MM-DD\",\n"+
			"    \"amount\": -123.45,\n"+
			"    \"description\": \"MERCHANT NAME OR DESCRIPTION\",\n"+
			"    \"account_info\": \"any additional account details if available\"\n"+
			"  }\n"+
			"]\n\n"+
			"Rules:\n"+
			"- Use negative amounts for expenses/debits, positive for income/credits\n"+
			"- Parse dates to YYYY-MM-DD format\n"+
			"- Clean up merchant names and descriptions\n"+
			"- If you cannot extract clear transactions, return an empty array []\n"+
			"- Only return valid JSON, no explanations\n",
		filename, content,
	)
}
