package core

import (
	"fmt"
	"strings"
)

const fallbackCodeTemplate = `# Code for: %s

def main():
    """
    Generated code example
    Add your API keys to .env to enable AI generation
    """
    print("Hello from GlobalAssist!")
    return True

if __name__ == "__main__":
    main()
`

const fallbackExplanation = "This is a demo response. Add ANTHROPIC_API_KEY, OPENAI_API_KEY or GEMINI_API_KEY to your .env file to enable real AI code generation."

var fenceLanguages = map[string]bool{
	"python": true, "py": true, "javascript": true, "js": true, "typescript": true, "ts": true,
	"java": true, "cpp": true, "c++": true, "c": true, "csharp": true, "cs": true, "go": true,
	"golang": true, "rust": true, "ruby": true, "php": true, "kotlin": true, "swift": true,
	"bash": true, "sh": true, "shell": true, "sql": true, "html": true, "css": true,
	"json": true, "yaml": true, "jsx": true, "tsx": true,
}

// ParseCodeResponse pulls the first fenced block out of a model reply. Text
// after the block (or before it) becomes the explanation.
func ParseCodeResponse(content, defaultExplanation string) *GenerationResult {
	if !strings.Contains(content, "```") {
		return &GenerationResult{Code: strings.TrimSpace(content), Explanation: defaultExplanation}
	}

	parts := strings.Split(content, "```")
	code := parts[1]
	if first, rest, ok := strings.Cut(code, "\n"); ok && fenceLanguages[strings.ToLower(strings.TrimSpace(first))] {
		code = rest
	}

	explanation := ""
	if len(parts) > 2 {
		explanation = strings.TrimSpace(parts[2])
	}
	if explanation == "" {
		explanation = strings.TrimSpace(parts[0])
	}
	if explanation == "" {
		explanation = defaultExplanation
	}

	return &GenerationResult{Code: strings.TrimSpace(code), Explanation: explanation}
}

// FallbackResult is served when no provider could answer.
func FallbackResult(prompt string) *GenerationResult {
	return &GenerationResult{
		Code:        fmt.Sprintf(fallbackCodeTemplate, prompt),
		Explanation: fallbackExplanation,
	}
}
