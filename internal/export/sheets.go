package export

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/codekids/quiz-backend/internal/quiz"
)

const (
	// DefaultSheetName is the tab results are appended to.
	DefaultSheetName = "Sheet1"
	noAnswer         = "No answer"
	timestampLayout  = "2006-01-02T15:04:05.000Z"
)

// SheetsConfig holds service-account credentials for the results spreadsheet.
type SheetsConfig struct {
	SpreadsheetID string
	ClientEmail   string
	PrivateKey    string // PEM; literal \n sequences are unescaped
	SheetName     string
}

// Configured reports whether every credential is present.
func (c SheetsConfig) Configured() bool {
	return c.SpreadsheetID != "" && c.ClientEmail != "" && c.PrivateKey != ""
}

// Sheets appends one row per result to a Google spreadsheet, writing the header row first when the sheet is empty.
type Sheets struct {
	svc           *sheets.Service
	spreadsheetID string
	sheet         string
}

// NewSheets builds the Sheets client. Extra client options replace the service-account HTTP client.
func NewSheets(ctx context.Context, cfg SheetsConfig, opts ...option.ClientOption) (*Sheets, error) {
	if !cfg.Configured() {
		return nil, ErrNotConfigured
	}
	if len(opts) == 0 {
		jwtCfg := &jwt.Config{
			Email:      cfg.ClientEmail,
			PrivateKey: []byte(strings.ReplaceAll(cfg.PrivateKey, `\n`, "\n")),
			Scopes:     []string{sheets.SpreadsheetsScope},
			TokenURL:   google.JWTTokenURL,
		}
		opts = []option.ClientOption{option.WithHTTPClient(jwtCfg.Client(context.Background()))}
	}
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets client: %w", err)
	}
	sheet := cfg.SheetName
	if sheet == "" {
		sheet = DefaultSheetName
	}
	return &Sheets{svc: svc, spreadsheetID: cfg.SpreadsheetID, sheet: sheet}, nil
}

func (s *Sheets) Name() string { return "sheets" }

// Export appends the result row.
func (s *Sheets) Export(ctx context.Context, _ uuid.UUID, result quiz.Result) error {
	header := Header(result.TotalQuestions)
	headerRange := fmt.Sprintf("%s!A1:%s1", s.sheet, columnName(len(header)))
	existing, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, headerRange).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	if len(existing.Values) == 0 {
		if err := s.append(ctx, header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	if err := s.append(ctx, Row(result)); err != nil {
		return fmt.Errorf("append row: %w", err)
	}
	return nil
}

func (s *Sheets) append(ctx context.Context, row []interface{}) error {
	_, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, s.sheet, &sheets.ValueRange{
		Values: [][]interface{}{row},
	}).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

// Check verifies the spreadsheet is reachable with the configured credentials and returns its title.
func (s *Sheets) Check(ctx context.Context) (string, error) {
	sp, err := s.svc.Spreadsheets.Get(s.spreadsheetID).Fields("spreadsheetId", "properties.title").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("get spreadsheet: %w", err)
	}
	if sp.Properties == nil {
		return "", nil
	}
	return sp.Properties.Title, nil
}

// Header is the column header for a bank of n questions.
func Header(n int) []interface{} {
	row := make([]interface{}, 0, n+5)
	row = append(row, "Timestamp", "Name", "Age")
	for i := 1; i <= n; i++ {
		row = append(row, "Q"+strconv.Itoa(i)+" Answer")
	}
	return append(row, "Score", "Duration (minutes)")
}

// Row renders a result in Header order. Unanswered questions read "No answer"; duration is rounded to minutes.
func Row(result quiz.Result) []interface{} {
	selected := make(map[int]string, len(result.Answers))
	for _, a := range result.Answers {
		if a.SelectedAnswer != nil {
			selected[a.QuestionID] = string(*a.SelectedAnswer)
		}
	}
	row := make([]interface{}, 0, result.TotalQuestions+5)
	row = append(row,
		result.Timestamp.UTC().Format(timestampLayout),
		result.Participant.Name,
		result.Participant.Age,
	)
	for id := 1; id <= result.TotalQuestions; id++ {
		if v, ok := selected[id]; ok {
			row = append(row, v)
		} else {
			row = append(row, noAnswer)
		}
	}
	minutes := int(math.Round(float64(result.CompletionTime) / 60))
	return append(row, result.Score, minutes)
}

// columnName converts a 1-based column index to A1 letters.
func columnName(n int) string {
	var b []byte
	for n > 0 {
		n--
		b = append([]byte{byte('A' + n%26)}, b...)
		n /= 26
	}
	return string(b)
}
