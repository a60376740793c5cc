package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/nes_dashboard/backend/internal/models"
)

const Unknown = "Unknown"

type Options struct {
	Attachments AttachmentRewriter
	// Location is used for dates that carry no zone. Defaults to UTC.
	Location *time.Location
}

// Tickets resolves the header layout once and normalizes every row.
func Tickets(rows []models.RawRow, opts Options) []models.Ticket {
	fields := ResolverFor(rows).Fields(TicketAliases)
	out := make([]models.Ticket, 0, len(rows))
	for _, row := range rows {
		out = append(out, Ticket(row, fields, opts))
	}
	return out
}

// Ticket maps one raw row onto the canonical ticket shape. fields maps each
// canonical field to the raw header it was found under. Missing or blank
// values get defaults; nothing here returns an error.
func Ticket(row models.RawRow, fields map[string]string, opts Options) models.Ticket {
	get := func(field, def string) string {
		if s := Text(lookup(row, fields, field)); s != "" {
			return s
		}
		return def
	}

	t := models.Ticket{
		Title:           get(FieldTitle, Unknown),
		Description:     get(FieldDescription, Unknown),
		ReferenceID:     get(FieldReferenceID, Unknown),
		Nadi:            get(FieldNadi, Unknown),
		State:           get(FieldState, Unknown),
		TP:              get(FieldTP, Unknown),
		DUSP:            get(FieldDUSP, Unknown),
		Status:          get(FieldStatus, Unknown),
		Requester:       get(FieldRequester, ""),
		MaintenanceType: get(FieldMaintenanceType, Unknown),
		Phase:           get(FieldPhase, Unknown),
		Priority:        get(FieldPriority, Unknown),
		RegisteredDate:  get(FieldRegisteredDate, Unknown),
		UpdatedDate:     get(FieldUpdatedDate, Unknown),
		RegisteredMonth: Unknown,
	}

	if v := lookup(row, fields, FieldRegisteredDate); !blank(v) {
		if ts, ok := ParseDate(v, opts.Location); ok {
			t.RegisteredAt = models.NewDate(ts.UTC())
			t.RegisteredMonth = MonthKey(ts)
		}
	}
	if v := lookup(row, fields, FieldUpdatedDate); !blank(v) {
		if ts, ok := ParseDate(v, opts.Location); ok {
			t.UpdatedAt = models.NewDate(ts.UTC())
		}
	}
	if img := get(FieldImageURL, ""); img != "" {
		t.ImageURL = opts.Attachments.Rewrite(img)
	}
	if v := lookup(row, fields, FieldActions); !blank(v) {
		t.Actions = parseActions(v, opts.Attachments)
	}
	return t
}

func lookup(row models.RawRow, fields map[string]string, field string) any {
	h, ok := fields[field]
	if !ok {
		return nil
	}
	return row[h]
}

func blank(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

// Text renders a cell value as a trimmed string.
func Text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case []byte:
		return strings.TrimSpace(string(x))
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return ""
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		if x.IsZero() {
			return ""
		}
		return x.UTC().Format(time.RFC3339)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

type rawAction struct {
	ID        json.RawMessage `json:"maintenance_action_id"`
	Text      string          `json:"action_text"`
	Action    string          `json:"action"`
	Files     []string        `json:"files"`
	CreatedAt string          `json:"created_at"`
}

// parseActions accepts either a JSON string or an already decoded list.
// Anything undecodable yields an empty list.
func parseActions(v any, rw AttachmentRewriter) models.Actions {
	var raw []byte
	switch x := v.(type) {
	case string:
		raw = []byte(x)
	case []byte:
		raw = x
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return models.Actions{}
		}
		raw = b
	}

	var decoded []rawAction
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return models.Actions{}
	}

	out := make(models.Actions, 0, len(decoded))
	for _, a := range decoded {
		files := make([]string, 0, len(a.Files))
		for _, f := range a.Files {
			if f == "" {
				files = append(files, f)
				continue
			}
			files = append(files, rw.Rewrite(f))
		}
		out = append(out, models.MaintenanceAction{
			ID:        actionID(a.ID),
			Text:      a.Text,
			Action:    a.Action,
			Files:     files,
			CreatedAt: a.CreatedAt,
		})
	}
	return out
}

func actionID(raw json.RawMessage) int64 {
	if len(raw) == 0 {
		return 0
	}
	s := strings.Trim(string(raw), `"`)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f)
	}
	return 0
}
