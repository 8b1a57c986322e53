package dialect

import (
	"fmt"
	"strings"
)

// GeneratePlaceholders is a helper function to create a slice of placeholder strings.
// It takes the number of placeholders needed and a function that returns the placeholder for a given index.
// It returns a comma-separated string of the generated placeholders.
func GeneratePlaceholders(count int, placeholderFunc func(int) string) string {
	placeholders := make([]string, count)
	for i := 0; i < count; i++ {
		placeholders[i] = placeholderFunc(i)
	}
	return strings.Join(placeholders, ", ")
}

// quoteWith wraps name, doubling any embedded closing quote.
func quoteWith(name, opening, closing string) string {
	return opening + strings.ReplaceAll(name, closing, closing+closing) + closing
}

func qualify(d Dialect, schema, name string) string {
	if schema == "" {
		return d.QuoteIdentifier(name)
	}
	return d.QuoteIdentifier(schema) + "." + d.QuoteIdentifier(name)
}

func insertQuery(verb, table string, cols []string, placeholder func(int) string) string {
	return fmt.Sprintf("%s %s (%s) VALUES (%s)", verb, table, strings.Join(cols, ", "), GeneratePlaceholders(len(cols), placeholder))
}

func truncateEach(tables []string) []string {
	out := make([]string, len(tables))
	for i, t := range tables {
		out[i] = "truncate table " + t
	}
	return out
}

// setExcluded renders `c = <prefix>c<suffix>` pairs.
func setExcluded(set []string, prefix, suffix string) string {
	parts := make([]string, len(set))
	for i, c := range set {
		parts[i] = c + " = " + prefix + c + suffix
	}
	return strings.Join(parts, ", ")
}

// DefaultSchemaName is a default implementation for Getting Schema Name (identity).
func DefaultSchemaName(input string) string {
	return input
}
