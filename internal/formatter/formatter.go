// package formatter renders recommendation and chart results to various formats (CSV, Markdown, plain text, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"

	"github.com/desertthunder/muse/internal/recommend"
	"github.com/desertthunder/muse/internal/services"
	"github.com/desertthunder/muse/internal/shared"
)

// RecommendationsToCSV converts a recommendation result to CSV with columns: ID, Name, Artists, Preview, Link
func RecommendationsToCSV(result *recommend.Result) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Name", "Artists", "Preview", "Link"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range result.Tracks {
		record := []string{
			track.ID,
			track.Name,
			track.Artists,
			track.PreviewURL,
			track.ExternalURL,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// RecommendationsToMarkdown converts a recommendation result to Markdown with an optional taste profile section
func RecommendationsToMarkdown(result *recommend.Result, title string) ([]byte, error) {
	var buf bytes.Buffer

	if title == "" {
		title = "Recommendations"
	}
	buf.WriteString(fmt.Sprintf("# %s\n\n", title))
	buf.WriteString(fmt.Sprintf("**Tracks**: %d\n\n", len(result.Tracks)))

	if result.Taste != nil {
		buf.WriteString("## Taste Profile\n\n")
		buf.WriteString("| Attribute | Target |\n|---|---|\n")
		targets := result.Taste.Targets()
		for _, attr := range tasteOrder {
			buf.WriteString(fmt.Sprintf("| %s | %s |\n", attr, targets[attr]))
		}
		buf.WriteString("\n")
	}

	buf.WriteString("## Tracks\n\n")
	for i, track := range result.Tracks {
		buf.WriteString(fmt.Sprintf("%d. %s - %s [listen](%s)\n", i+1, track.Artists, track.Name, track.ExternalURL))
	}

	return buf.Bytes(), nil
}

// RecommendationsToText converts a recommendation result to plain text
func RecommendationsToText(result *recommend.Result) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Tracks: %d\n\n", len(result.Tracks)))
	for i, track := range result.Tracks {
		buf.WriteString(fmt.Sprintf("%d. %s - %s\n", i+1, track.Artists, track.Name))
	}

	return buf.Bytes(), nil
}

// ChartToCSV converts chart entries to CSV with columns: Position, ID, Title, Artist, Album, Link
func ChartToCSV(entries []services.ChartEntry) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "ID", "Title", "Artist", "Album", "Link"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, entry := range entries {
		record := []string{
			fmt.Sprintf("%d", entry.Position),
			entry.ID,
			entry.Title,
			entry.Artist,
			entry.Album,
			entry.Link,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ChartToMarkdown converts chart entries to a Markdown listing
func ChartToMarkdown(entries []services.ChartEntry, title string) ([]byte, error) {
	var buf bytes.Buffer

	if title == "" {
		title = "Charts"
	}
	buf.WriteString(fmt.Sprintf("# %s\n\n", title))

	for _, entry := range entries {
		albumPart := ""
		if entry.Album != "" {
			albumPart = fmt.Sprintf(" (%s)", entry.Album)
		}
		buf.WriteString(fmt.Sprintf("%d. %s - %s%s\n", entry.Position, entry.Artist, entry.Title, albumPart))
	}

	return buf.Bytes(), nil
}

// ChartToText converts chart entries to plain text
func ChartToText(entries []services.ChartEntry) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Entries: %d\n\n", len(entries)))
	for _, entry := range entries {
		buf.WriteString(fmt.Sprintf("%d. %s - %s\n", entry.Position, entry.Artist, entry.Title))
	}

	return buf.Bytes(), nil
}

// ToJSON generates an indented JSON representation of any result payload
func ToJSON(payload any) ([]byte, error) {
	return shared.MarshalJSON(payload, true)
}

// WriteRecommendationsExport writes a recommendation result to disk in the given
// format ("csv", "markdown", "text", or "json").
//
// Defaults to recommendations.<ext> as the filename.
func WriteRecommendationsExport(result *recommend.Result, filepath, format string) (string, error) {
	var (
		data []byte
		err  error
		ext  string
	)

	switch format {
	case "csv":
		data, err = RecommendationsToCSV(result)
		ext = "csv"
	case "markdown", "md":
		data, err = RecommendationsToMarkdown(result, "")
		ext = "md"
	case "json":
		data, err = ToJSON(result)
		ext = "json"
	case "text", "":
		data, err = RecommendationsToText(result)
		ext = "txt"
	default:
		return "", fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidFlag, format)
	}
	if err != nil {
		return "", fmt.Errorf("failed to generate export: %w", err)
	}

	if filepath == "" {
		filepath = "recommendations." + ext
	}
	if err := os.WriteFile(filepath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}

	return filepath, nil
}

// tasteOrder fixes the attribute order for rendered taste profiles.
var tasteOrder = []string{
	"danceability", "energy", "valence",
	"acousticness", "instrumentalness", "speechiness", "tempo",
}
