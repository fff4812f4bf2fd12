package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/merchtools/collectioner/internal/gemini"
	"github.com/merchtools/collectioner/internal/ollama"
	"github.com/merchtools/collectioner/internal/openai"
	"github.com/merchtools/collectioner/internal/providers"
)

// Oracle wraps an LLM provider as a best-effort classification
// service. Responses are treated as untrusted input: malformed output
// surfaces as an error or is dropped entry by entry, never propagated
// as a parse panic.
type Oracle struct {
	provider    providers.Provider
	model       string
	temperature float64
}

// New builds an oracle for the named provider. An empty model picks
// the provider's default.
func New(provider, model string, temperature float64) (*Oracle, error) {
	var p providers.Provider
	switch provider {
	case "openai":
		p = openai.New()
	case "gemini":
		p = gemini.New()
	case "ollama":
		p = ollama.New()
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}

	if model == "" {
		model = defaultModel(provider)
	}

	return &Oracle{
		provider:    p,
		model:       model,
		temperature: temperature,
	}, nil
}

func defaultModel(provider string) string {
	switch provider {
	case "openai":
		if model := os.Getenv("OPENAI_MODEL"); model != "" {
			return model
		}
		return "gpt-4o-mini"
	case "gemini":
		if model := os.Getenv("GEMINI_MODEL"); model != "" {
			return model
		}
		return "gemini-1.5-flash"
	case "ollama":
		if model := os.Getenv("OLLAMA_MODEL"); model != "" {
			return model
		}
		return "mistral-small3.2:24b"
	default:
		return ""
	}
}

const namerSystem = "You are a product categorization expert. Return only valid JSON."

// SuggestNames asks the provider for candidate collection names given
// a sample of product titles. The caller falls back to a default name
// on any error; a failure here is never fatal to the run.
func (o *Oracle) SuggestNames(ctx context.Context, sampleTitles []string) ([]string, error) {
	prompt := fmt.Sprintf(`Analyze these product titles and suggest between 5 and 15 collection names that would group them by primary category or product type.
Return a JSON array of strings.

Titles:
%s

Example format:
["Bike Storage", "Flooring Tools", "Storage Solutions"]`, strings.Join(sampleTitles, "\n"))

	raw, err := o.provider.Complete(ctx, providers.Config{
		Model:       o.model,
		Temperature: o.temperature,
		System:      namerSystem,
		Prompt:      prompt,
	})
	if err != nil {
		return nil, fmt.Errorf("name suggestion failed: %w", err)
	}

	var names []string
	if err := json.Unmarshal([]byte(stripFences(raw)), &names); err != nil {
		return nil, fmt.Errorf("failed to parse name suggestions: %w", err)
	}

	cleaned := make([]string, 0, len(names))
	seen := make(map[string]bool)
	for _, name := range names {
		name = strings.TrimSpace(name)
		key := strings.ToLower(name)
		if name == "" || seen[key] {
			continue
		}
		seen[key] = true
		cleaned = append(cleaned, name)
	}
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("provider returned no usable names")
	}
	if len(cleaned) > 15 {
		cleaned = cleaned[:15]
	}
	return cleaned, nil
}

// ClassifyBatch asks the provider to place each title of one batch
// into a candidate collection. Titles are numbered with their global
// 1-based index, starting at start+1. The result maps global index to
// collection name and covers only the indices the provider answered
// for validly; the classification loop fills every gap.
func (o *Oracle) ClassifyBatch(ctx context.Context, start int, titles, candidates []string) (map[int]string, error) {
	numbered := make([]string, len(titles))
	for i, title := range titles {
		numbered[i] = fmt.Sprintf("%d. %s", start+i+1, title)
	}

	prompt := fmt.Sprintf(`Assign each product title below to exactly one of these collections:
%s

Return a JSON object where keys are collection names and values are arrays of title numbers.

Titles:
%s

Example format:
{
  "Bike Storage": [12, 14],
  "Flooring Tools": [2, 3, 4]
}

IMPORTANT: Use the exact numbers shown in the list above and only the collection names given.`,
		strings.Join(candidates, ", "),
		strings.Join(numbered, "\n"))

	raw, err := o.provider.Complete(ctx, providers.Config{
		Model:       o.model,
		Temperature: o.temperature,
		System:      namerSystem,
		Prompt:      prompt,
	})
	if err != nil {
		return nil, fmt.Errorf("batch classification failed: %w", err)
	}

	return parseBatchResponse(stripFences(raw), start, len(titles)), nil
}

// parseBatchResponse turns the provider's JSON into a global index to
// name map. Every malformed piece is skipped individually so that one
// bad entry does not cost the rest of the batch. When the provider
// assigns the same index to several collections, the first name in
// sort order wins, so identical responses always parse identically.
func parseBatchResponse(raw string, start, count int) map[int]string {
	var grouped map[string][]json.Number
	if err := json.Unmarshal([]byte(raw), &grouped); err != nil {
		// Some models quote the numbers; retry with a looser shape
		// before giving up on the batch.
		var loose map[string][]any
		if err := json.Unmarshal([]byte(raw), &loose); err != nil {
			slog.Warn("Unparseable batch response", "error", err)
			return nil
		}
		grouped = make(map[string][]json.Number, len(loose))
		for name, values := range loose {
			for _, v := range values {
				switch n := v.(type) {
				case float64:
					grouped[name] = append(grouped[name], json.Number(fmt.Sprintf("%d", int(n))))
				case string:
					grouped[name] = append(grouped[name], json.Number(strings.TrimSpace(n)))
				}
			}
		}
	}

	names := make([]string, 0, len(grouped))
	for name := range grouped {
		names = append(names, name)
	}
	sort.Strings(names)

	assignments := make(map[int]string)
	for _, rawName := range names {
		name := strings.TrimSpace(rawName)
		if name == "" {
			continue
		}
		for _, number := range grouped[rawName] {
			idx, err := number.Int64()
			if err != nil {
				continue
			}
			index := int(idx)
			if index <= start || index > start+count {
				continue
			}
			if _, taken := assignments[index]; taken {
				continue
			}
			assignments[index] = name
		}
	}
	return assignments
}

// stripFences removes a surrounding markdown code block, which chat
// models add despite instructions to return bare JSON.
func stripFences(response string) string {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	return strings.TrimSpace(response)
}
