package providers

import "fmt"

// Generation limits shared by all structuring providers. Figures carry less
// text than pages, so they get a smaller completion budget.
const (
	structurePageMaxTokens   = 4000
	structureFigureMaxTokens = 3000
	structureTemperature     = 0.2
)

// structurePromptBody is the shared instruction set for page and figure
// structuring. The service must answer with a bare JSON object matching
// StructuredRecord.
const structurePromptBody = `Convert this into a structured JSON response with the following fields:
- file_name: string
- topics: list of strings
- languages: list of strings
- description: string
- ocr_contents: dictionary with the main extracted information
Respond only with the JSON object.`

func pagePrompt(text string) string {
	return fmt.Sprintf("This is the pages OCR in markdown:\n====MARKDOWN====\n%s\n====END MARKDOWN====\n%s", text, structurePromptBody)
}

func figurePrompt(text string) string {
	return fmt.Sprintf("This is the image OCR in markdown:\n====MARKDOWN====\n%s\n====END MARKDOWN====\n%s", text, structurePromptBody)
}
