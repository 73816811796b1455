package core

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/perry/email-evolve/internal/utils"
)

// samplePreviewLimit bounds how much of a sample body the oracle sees.
const samplePreviewLimit = 200

// Prompt renders the naming request as the instruction text sent to every
// oracle provider.
func (r *NamingRequest) Prompt() string {
	labels := make([]string, 0, len(r.LabelCounts))
	for label := range r.LabelCounts {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	dist := make([]string, len(labels))
	for i, label := range labels {
		dist[i] = fmt.Sprintf("%s: %d", label, r.LabelCounts[label])
	}

	samples := make([]string, len(r.Samples))
	for i, s := range r.Samples {
		samples[i] = fmt.Sprintf("  From: %s\n  Subject: %s\n  Body preview: %s",
			s.From, s.Subject, utils.TruncateText(utils.SanitizeUTF8(s.Body), samplePreviewLimit))
	}

	return fmt.Sprintf(`I have a cluster of %d emails that don't fit well into my existing categories: %s.

Top terms in this cluster: %s
Current label distribution: {%s}

Sample emails:
%s

Based on these emails, should I create a new category?
If yes, respond with JSON: {"new_category": "category_name", "description": "short description", "reasoning": "why this is distinct"}
If no (they belong in existing categories), respond with: {"new_category": "%s", "reasoning": "why"}`,
		r.ClusterSize,
		strings.Join(r.ExistingCategories, ", "),
		strings.Join(r.TopTerms, ", "),
		strings.Join(dist, ", "),
		strings.Join(samples, "\n---\n"),
		NoNewCategory,
	)
}

// ParseNamingResponse decodes an oracle reply, tolerating markdown fences
// and surrounding prose. A reply with no JSON object yields ErrOracleParse.
func ParseNamingResponse(text string) (*NamingResponse, error) {
	raw, ok := utils.ExtractJSON(text)
	if !ok {
		return nil, fmt.Errorf("%w: no JSON object in reply", ErrOracleParse)
	}
	var resp NamingResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOracleParse, err)
	}
	return &resp, nil
}
