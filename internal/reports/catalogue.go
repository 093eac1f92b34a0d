// Package reports declares the research reports served by the resolve
// pipeline and turns a report request into a pipeline query.
package reports

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"oracle/internal/pipeline"
	"oracle/internal/session"
)

// Kind describes one report type.
type Kind struct {
	Name  string
	Label string
	// StackType is stamped on every returned item so callers can group
	// cards by origin.
	StackType string
	JSONMode  bool
	// FetchMore kinds accept an exclusion list of items already shown.
	FetchMore bool
	// NeedsSubject kinds need a free-form subject besides the session niche.
	NeedsSubject bool
	// List kinds always answer with a JSON array.
	List   bool
	Schema json.RawMessage

	instruction func(niche, subject string) string
}

// Task renders the pipeline task for this kind.
func (k Kind) Task(s session.Session, subject string) pipeline.Task {
	return pipeline.Task{
		Name:        k.Name,
		Instruction: k.instruction(strings.TrimSpace(s.Niche), strings.TrimSpace(subject)),
		JSONMode:    k.JSONMode,
		Schema:      k.Schema,
	}
}

var comparisonSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "title": {"type": "string"},
    "summary": {"type": "string"},
    "similarities": {"type": "array", "items": {"type": "string"}},
    "differences": {"type": "array", "items": {"type": "string"}},
    "strategicImplications": {"type": "array", "items": {"type": "string"}}
  },
  "required": ["title", "summary", "similarities", "differences", "strategicImplications"]
}`)

var catalogue = map[string]Kind{}

func register(k Kind) {
	if k.StackType == "" {
		k.StackType = k.Name
	}
	catalogue[k.Name] = k
}

func init() {
	register(Kind{
		Name: "trends", Label: "Market Trend", JSONMode: true, FetchMore: true, List: true,
		instruction: func(niche, _ string) string {
			return fmt.Sprintf("Identify 6 live trends in the niche %q with a sentiment analysis for each. Return a JSON array of trend objects.", niche)
		},
	})
	register(Kind{
		Name: "keywords", Label: "Keyword Analysis", JSONMode: true, FetchMore: true, List: true,
		instruction: func(niche, _ string) string {
			return fmt.Sprintf("Produce live keyword intelligence for %q: volume as a specific number, CPC as a specific price and difficulty 0-100. Return a JSON array of keyword objects.", niche)
		},
	})
	register(Kind{
		Name: "marketplaces", Label: "Platform Analysis", JSONMode: true, FetchMore: true, List: true,
		instruction: func(niche, _ string) string {
			return fmt.Sprintf("Find 6 marketplaces where %q sells and analyze buyer sentiment on each. Return a JSON array of marketplace objects.", niche)
		},
	})
	register(Kind{
		Name: "content", Label: "Content Idea", JSONMode: true, FetchMore: true, NeedsSubject: true, List: true,
		instruction: func(_, topic string) string {
			return fmt.Sprintf("Design viral content ideas for %q based on currently trending formats. Return a JSON array of content objects.", topic)
		},
	})
	register(Kind{
		Name: "socials", Label: "Social Media Strategy", JSONMode: true, List: true,
		instruction: func(niche, _ string) string {
			return fmt.Sprintf("Build a social strategy for %q from current top posts and write 6 posts. Return a JSON array of platform post objects.", niche)
		},
	})
	register(Kind{
		Name: "hashtags", Label: "Hashtags", JSONMode: true, FetchMore: true, NeedsSubject: true, List: true, StackType: "socials",
		instruction: func(_, content string) string {
			return fmt.Sprintf("Find viral hashtags for this post: %q. Return a JSON array of strings.", content)
		},
	})
	register(Kind{
		Name: "copy", Label: "Marketing Copy", JSONMode: true, FetchMore: true, List: true,
		instruction: func(niche, _ string) string {
			return fmt.Sprintf("Write 6 marketing copy variations for %q. Return a JSON array of copy objects.", niche)
		},
	})
	register(Kind{
		Name: "visions", Label: "Venture Idea", JSONMode: true, FetchMore: true, List: true, StackType: "ventures",
		instruction: func(niche, _ string) string {
			return fmt.Sprintf("Propose venture concepts for %q grounded in problems people discuss online. Return a JSON array of vision objects.", niche)
		},
	})
	register(Kind{
		Name: "blueprint", Label: "Venture Blueprint", JSONMode: true, NeedsSubject: true, StackType: "ventures",
		instruction: func(_, title string) string {
			return fmt.Sprintf("Draft a detailed business blueprint for the venture %q. Return one JSON object.", title)
		},
	})
	register(Kind{
		Name: "arbitrage", Label: "Arbitrage Plan", JSONMode: true, FetchMore: true, NeedsSubject: true, List: true,
		instruction: func(_, product string) string {
			return fmt.Sprintf("Run an arbitrage analysis for %q: find the low price at wholesale sources and the high price at retail marketplaces. Return a JSON array of arbitrage objects.", product)
		},
	})
	register(Kind{
		Name: "scenarios", Label: "Scenario", JSONMode: true, FetchMore: true, NeedsSubject: true, List: true,
		instruction: func(_, goal string) string {
			return fmt.Sprintf("Simulate strategic scenarios for the goal %q. Return a JSON array of scenario objects.", goal)
		},
	})
	register(Kind{
		Name: "leads", Label: "Leads", JSONMode: true, FetchMore: true, NeedsSubject: true, List: true,
		instruction: func(niche, target string) string {
			return fmt.Sprintf("Find business leads for the niche %q matching: %s. Include a contact email per lead. Return a JSON array of lead objects.", niche, target)
		},
	})
	register(Kind{
		Name: "products", Label: "Product Finder", JSONMode: true, FetchMore: true, NeedsSubject: true, List: true,
		instruction: func(_, query string) string {
			return fmt.Sprintf("Find the cheapest current offers for %q with store, price and link. Return a JSON array of product objects.", query)
		},
	})
	register(Kind{
		Name: "store-analysis", Label: "Competitor Analysis", JSONMode: true, NeedsSubject: true,
		instruction: func(_, urls string) string {
			return fmt.Sprintf("Compare these stores: %s. Return one JSON object with strengths, weaknesses and recommendations.", urls)
		},
	})
	register(Kind{
		Name: "procurement", Label: "Procurement Agents", JSONMode: true, NeedsSubject: true, List: true,
		instruction: func(_, country string) string {
			return fmt.Sprintf("Find procurement agents that ship to %q. Return a JSON array of agent objects.", country)
		},
	})
	register(Kind{
		Name: "verification", Label: "Entity Verification", JSONMode: true, NeedsSubject: true,
		instruction: func(_, entity string) string {
			return fmt.Sprintf("Verify the legitimacy of %s using live sources. Return one JSON object with a verdict, trust score and evidence.", entity)
		},
	})
	register(Kind{
		Name: "comparison", Label: "Comparative Analysis", JSONMode: true, NeedsSubject: true, Schema: comparisonSchema,
		instruction: func(_, items string) string {
			return fmt.Sprintf("Compare these items: %s. Return JSON matching the comparative report schema.", items)
		},
	})
	register(Kind{
		Name: "summary", Label: "Briefing",
		instruction: func(niche, _ string) string {
			return fmt.Sprintf("Write a short plain-text market briefing for %q covering what changed this week.", niche)
		},
	})
}

// Lookup returns the kind registered under name.
func Lookup(name string) (Kind, bool) {
	k, ok := catalogue[name]
	return k, ok
}

// Names lists every report kind, sorted.
func Names() []string {
	out := make([]string, 0, len(catalogue))
	for name := range catalogue {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// OperationKind is the lifecycle kind used to track reports of this kind.
func OperationKind(name string) string {
	return "report." + name
}
