package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"topic-scraper/models"

	"github.com/charmbracelet/log"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const maxSheetName = 100

// Writer handles writing scrape results to Google Sheets
type Writer struct {
	service       *sheets.Service
	spreadsheetID string
	logger        *log.Logger
}

// NewWriter creates a new Google Sheets writer. Credentials are read from
// credentialsPath, or from GOOGLE_SHEETS_CREDENTIALS when the path is empty.
func NewWriter(ctx context.Context, spreadsheetID, credentialsPath string, logger *log.Logger) (*Writer, error) {
	if logger == nil {
		logger = log.Default()
	}

	var credsJSON []byte
	if credentialsPath != "" {
		data, err := os.ReadFile(credentialsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		credsJSON = data
	} else {
		// Trim whitespace and newlines that might be in the environment variable
		credsEnv := strings.TrimSpace(os.Getenv("GOOGLE_SHEETS_CREDENTIALS"))
		if credsEnv == "" {
			return nil, fmt.Errorf("credentials not found: GOOGLE_SHEETS_CREDENTIALS environment variable is empty or not set")
		}
		logger.Debug("Reading credentials from GOOGLE_SHEETS_CREDENTIALS", "bytes", len(credsEnv))
		credsJSON = []byte(credsEnv)
	}

	if err := checkCredentials(credsJSON); err != nil {
		return nil, err
	}

	return newWriter(ctx, spreadsheetID, logger, option.WithCredentialsJSON(credsJSON))
}

func newWriter(ctx context.Context, spreadsheetID string, logger *log.Logger, opts ...option.ClientOption) (*Writer, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet ID is empty")
	}
	service, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return &Writer{
		service:       service,
		spreadsheetID: spreadsheetID,
		logger:        logger,
	}, nil
}

// checkCredentials accepts only service account credentials
func checkCredentials(credsJSON []byte) error {
	var creds map[string]interface{}
	if err := json.Unmarshal(credsJSON, &creds); err != nil {
		return fmt.Errorf("invalid credentials JSON (check if JSON is properly formatted): %w", err)
	}
	if creds["type"] != "service_account" {
		return fmt.Errorf("credentials must be a service account JSON file (type: service_account), got type: %v", creds["type"])
	}
	return nil
}

// WriteTopics creates a new sheet and writes the topics to it.
// Returns the sheet name and sheet ID (gid) that was created.
func (w *Writer) WriteTopics(ctx context.Context, sheetName string, topics []models.Topic) (string, int64, error) {
	values := [][]interface{}{{"Title", "Description", "URL"}}
	for _, t := range topics {
		values = append(values, []interface{}{t.Title, t.Description, t.URL})
	}
	return w.writeSheet(ctx, sheetName, values)
}

// WriteRepos creates a new sheet and writes the repositories to it
func (w *Writer) WriteRepos(ctx context.Context, sheetName string, repos []models.Repository) (string, int64, error) {
	values := [][]interface{}{{"username", "repo_name", "stars", "repo_url"}}
	for _, r := range repos {
		values = append(values, []interface{}{r.Username, r.RepoName, r.Stars, r.RepoURL})
	}
	return w.writeSheet(ctx, sheetName, values)
}

// ExportRun writes one Topics_<timestamp> sheet plus one sheet per topic that
// has repositories. It stops at the first failure.
func (w *Writer) ExportRun(ctx context.Context, at time.Time, topics []models.Topic, repos map[string][]models.Repository) error {
	stamp := at.Format("2006-01-02_15-04-05")

	if _, _, err := w.WriteTopics(ctx, "Topics_"+stamp, topics); err != nil {
		return err
	}
	for _, t := range topics {
		rs := repos[t.Title]
		if len(rs) == 0 {
			continue
		}
		if _, _, err := w.WriteRepos(ctx, topicSheetName(t.Title, stamp), rs); err != nil {
			return fmt.Errorf("topic %q: %w", t.Title, err)
		}
	}
	return nil
}

// writeSheet adds a sheet at index 0 and fills it from A1
func (w *Writer) writeSheet(ctx context.Context, sheetName string, values [][]interface{}) (string, int64, error) {
	sheetName = sanitizeSheetName(sheetName)
	sheetID, err := w.createSheet(ctx, sheetName)
	if err != nil {
		return "", 0, err
	}

	valueRange := &sheets.ValueRange{Values: values}
	_, err = w.service.Spreadsheets.Values.Update(w.spreadsheetID, a1Range(sheetName), valueRange).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return "", 0, fmt.Errorf("failed to write to sheet: %w", err)
	}

	w.logger.Info("Wrote sheet", "sheet", sheetName, "rows", len(values)-1)
	return sheetName, sheetID, nil
}

func (w *Writer) createSheet(ctx context.Context, sheetName string) (int64, error) {
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{
			{
				AddSheet: &sheets.AddSheetRequest{
					Properties: &sheets.SheetProperties{
						Title: sheetName,
						Index: 0,
					},
				},
			},
		},
	}

	resp, err := w.service.Spreadsheets.BatchUpdate(w.spreadsheetID, req).Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("failed to create sheet: %w", err)
	}

	var sheetID int64
	if len(resp.Replies) > 0 && resp.Replies[0].AddSheet != nil && resp.Replies[0].AddSheet.Properties != nil {
		sheetID = resp.Replies[0].AddSheet.Properties.SheetId
	}
	w.logger.Debug("Created sheet", "sheet", sheetName, "id", sheetID)
	return sheetID, nil
}

// topicSheetName keeps the timestamp suffix intact when the title is cut
func topicSheetName(title, stamp string) string {
	suffix := "_" + stamp
	title = sanitizeSheetName(title)
	return truncateRunes(title, maxSheetName-utf8.RuneCountInString(suffix)) + suffix
}

func a1Range(sheetName string) string {
	return "'" + strings.ReplaceAll(sheetName, "'", "''") + "'!A1"
}

// sanitizeSheetName removes invalid characters from sheet name
func sanitizeSheetName(name string) string {
	// Google Sheets sheet names cannot contain: / \ ? * [ ] :
	invalidChars := []string{"/", "\\", "?", "*", "[", "]", ":"}
	result := name
	for _, char := range invalidChars {
		result = strings.ReplaceAll(result, char, "_")
	}
	result = strings.TrimSpace(result)
	if result == "" {
		result = "Sheet1"
	}
	return truncateRunes(result, maxSheetName)
}

// truncateRunes keeps at most n characters of s
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// ExtractSpreadsheetID extracts the spreadsheet ID from a Google Sheets URL.
// A bare ID is returned unchanged.
func ExtractSpreadsheetID(url string) string {
	// https://docs.google.com/spreadsheets/d/SPREADSHEET_ID/edit?usp=sharing
	parts := strings.Split(url, "/d/")
	if len(parts) < 2 {
		if strings.Contains(url, "/") {
			return ""
		}
		return strings.TrimSpace(url)
	}

	idPart := parts[1]
	if idx := strings.IndexAny(idPart, "/?#"); idx != -1 {
		idPart = idPart[:idx]
	}
	return strings.TrimSpace(idPart)
}
