package llm

import (
	"fmt"
	"strings"
)

// ColumnSample is the per-column digest sent to the clustering prompt.
type ColumnSample struct {
	Column  string
	Dataset string
	Samples []string
	Total   int
}

const clusterSampleDisplay = 20

func buildClusteringPrompt(cols []ColumnSample) string {
	var details []string
	for _, c := range cols {
		shown := c.Samples
		remaining := 0
		if len(shown) > clusterSampleDisplay {
			remaining = len(shown) - clusterSampleDisplay
			shown = shown[:clusterSampleDisplay]
		}
		quoted := make([]string, len(shown))
		for i, v := range shown {
			quoted[i] = fmt.Sprintf("%q", v)
		}
		sampleStr := strings.Join(quoted, ", ")
		if remaining > 0 {
			sampleStr += fmt.Sprintf(" ... and %d more values", remaining)
		}
		details = append(details, fmt.Sprintf(
			"Column: '%s' (File: %s)\n  Sample values: %s\n  Total values: %d",
			c.Column, c.Dataset, sampleStr, c.Total))
	}

	return fmt.Sprintf(`You are an expert data analyst specializing in data cleaning and standardization.

Your task is to analyze the following columns and group them into logical clusters based on their names and sample values. Columns in the same cluster should contain similar types of data.

ANALYZE THESE COLUMNS:
%s

INSTRUCTIONS:
1. Group columns that likely contain the same type of information.
2. Use both column names and sample values to guide grouping.
3. Consider common patterns such as:
   - Brand names, product names, company names
   - Categories, types, classifications
   - Addresses, locations, regions
   - Descriptions, comments, notes
4. Each column must appear in exactly ONE cluster.
5. Only include clusters of columns with string-type values.
6. Output strictly as a valid JSON array of arrays, where each inner array lists the grouped column names.
7. Do not include explanations, comments, or extra text outside the JSON.

EXAMPLE OUTPUT FORMAT:
[
  ["brand_name", "product_brand", "brand"],
  ["category", "product_type", "item_category"],
  ["address", "location", "shipping_address"]
]

IMPORTANT: Return ONLY the JSON array, no additional text or explanation.

YOUR CLUSTERING RESULT:`, strings.Join(details, "\n"))
}

func buildInitialMappingPrompt(values []string, instructions string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = fmt.Sprintf("%q", v)
	}

	extra := ""
	if instructions != "" {
		extra = fmt.Sprintf("\nAdditional instructions from the reviewer:\n%s\n", instructions)
	}

	return fmt.Sprintf(`You are an expert in cleaning and deduplicating value names in tabular data.

Below is a list of %d values extracted from different data sources. These values may vary due to typos, prefixes/suffixes (e.g., "U-", "C-", version numbers), formatting inconsistencies, or minor descriptive additions.

Your task is to:
1. Identify values that likely refer to the same thing.
2. Group such similar values together under a shared 'canonical' value.
3. The canonical value must be selected from the provided variants — ideally the most commonly used or recognizable form.

CRITICAL REQUIREMENTS:
- You MUST return exactly %d mappings (one for each input value).
- Every input value must appear exactly once in the output.
- Every provided value must be included under some group (even if standalone).
- Do not add extra mappings or skip any input values.
- Do not invent new values not in the original list.
- Use format: original_name=canonical_name
- One mapping per line
- No extra text, quotes, or formatting
%s
Values: %s

Return the output strictly in the following format:

**Output format**:
GATORADE 5V5=GATORADE
PEPSI MAX=PEPSI
COCA COLA ZERO=COCA COLA
`, len(values), len(values), extra, strings.Join(quoted, " "))
}

func buildRefinementPrompt(prevClassification, feedbackJSON string) string {
	return fmt.Sprintf(`You previously classified values as follows:
%s

A human reviewer has suggested the following refinements:
%s

Your task is to:
- Apply the human feedback carefully to improve classification.
- Update the value mappings based on the human feedback provided.
- You may also apply the same change (or a consistent pattern) to other values that are lexically similar or follow a similar naming pattern.
- Ensure all values are still classified under a canonical value from the list.

CRITICAL REQUIREMENTS:
- You MUST return exactly the same number of mappings as the previous classification.
- Every input value must appear exactly once in the output.
- Use format: original_name=canonical_name
- One mapping per line
- No extra text or formatting
- Do not add extra mappings or skip any input values.
- Do not invent new values not in the original list.

Return the output strictly in the following format:

**Output format**:
GATORADE 5V5=GATORADE
PEPSI MAX=PEPSI
COCA COLA ZERO=COCA COLA`, prevClassification, feedbackJSON)
}
