package normalize

import (
	"reflect"
	"testing"
	"time"

	"github.com/nes_dashboard/backend/internal/models"
)

const testBase = "https://files.example.test/view?file_url="

func testOptions() Options {
	return Options{Attachments: AttachmentRewriter{BaseURL: testBase, Token: "tok"}}
}

func TestResolveCaseInsensitive(t *testing.T) {
	r := NewResolver([]string{"\ufeffTitle", " Maintenance_Status ", "Created_At"})

	if h, ok := r.Resolve(TicketAliases[FieldTitle]...); !ok || h != "\ufeffTitle" {
		t.Fatalf("expected title header, got %q %v", h, ok)
	}
	if h, ok := r.Resolve(TicketAliases[FieldStatus]...); !ok || h != " Maintenance_Status " {
		t.Fatalf("expected status header, got %q %v", h, ok)
	}
	if _, ok := r.Resolve(TicketAliases[FieldPriority]...); ok {
		t.Fatalf("expected priority to be unresolved")
	}
}

func TestResolveAliasOrder(t *testing.T) {
	r := NewResolver([]string{"phase", "phase_by"})
	h, _ := r.Resolve(TicketAliases[FieldPhase]...)
	if h != "phase_by" {
		t.Fatalf("expected first alias to win, got %q", h)
	}
}

func TestTicketDefaults(t *testing.T) {
	rows := []models.RawRow{{"title": "  Broken router ", "status": ""}}
	got := Tickets(rows, testOptions())[0]

	if got.Title != "Broken router" {
		t.Fatalf("expected trimmed title, got %q", got.Title)
	}
	if got.Status != Unknown || got.Priority != Unknown || got.Nadi != Unknown {
		t.Fatalf("expected Unknown defaults, got %+v", got)
	}
	if got.Requester != "" {
		t.Fatalf("expected empty requester, got %q", got.Requester)
	}
	if got.RegisteredAt.Valid || got.RegisteredMonth != Unknown {
		t.Fatalf("expected missing date, got %+v %q", got.RegisteredAt, got.RegisteredMonth)
	}
	if got.ImageURL != "" || got.Actions != nil {
		t.Fatalf("expected optional fields absent")
	}
}

func TestTicketDates(t *testing.T) {
	rows := []models.RawRow{{
		"created_at":   "2024-03-05T10:00:00Z",
		"last_updated": "not a date",
	}}
	got := Tickets(rows, testOptions())[0]
	if !got.RegisteredAt.Valid || got.RegisteredAt.Time.Day() != 5 {
		t.Fatalf("expected parsed registered date, got %+v", got.RegisteredAt)
	}
	if got.RegisteredMonth != "2024-03" {
		t.Fatalf("expected 2024-03, got %q", got.RegisteredMonth)
	}
	if got.UpdatedAt.Valid {
		t.Fatalf("expected invalid updated date to be missing")
	}
	if got.UpdatedDate != "not a date" {
		t.Fatalf("raw value should be kept, got %q", got.UpdatedDate)
	}
}

func TestURLRewrite(t *testing.T) {
	rw := AttachmentRewriter{BaseURL: testBase, Token: "tok"}
	cases := map[string]string{
		"/upload/photo1.jpg":     testBase + "photo1.jpg&token=tok",
		"upload/my photo.jpg":    testBase + "my%20photo.jpg&token=tok",
		"dir/a&b.png":            testBase + "dir%2Fa%26b.png&token=tok",
		"https://cdn.test/x.jpg": "https://cdn.test/x.jpg",
		"http://cdn.test/y.jpg":  "http://cdn.test/y.jpg",
	}
	for in, want := range cases {
		if got := rw.Rewrite(in); got != want {
			t.Fatalf("rewrite %q: expected %q, got %q", in, want, got)
		}
	}
}

func TestActionsFromJSONString(t *testing.T) {
	rows := []models.RawRow{{
		"maintenance_actions": `[{"maintenance_action_id": 7, "action_text": "Replaced", "action": "fix", "files": ["/upload/photo1.jpg", "https://x.test/a.jpg"], "created_at": "2024-01-01"}]`,
		"image":               "upload/cover.png",
	}}
	got := Tickets(rows, testOptions())[0]
	if len(got.Actions) != 1 {
		t.Fatalf("expected one action, got %d", len(got.Actions))
	}
	a := got.Actions[0]
	if a.ID != 7 || a.Text != "Replaced" {
		t.Fatalf("unexpected action %+v", a)
	}
	if a.Files[0] != testBase+"photo1.jpg&token=tok" || a.Files[1] != "https://x.test/a.jpg" {
		t.Fatalf("unexpected files %v", a.Files)
	}
	if got.ImageURL != testBase+"cover.png&token=tok" {
		t.Fatalf("unexpected image url %q", got.ImageURL)
	}
}

func TestActionsFromDecodedList(t *testing.T) {
	rows := []models.RawRow{{
		"actions": []any{map[string]any{"maintenance_action_id": "3", "files": []any{"a.jpg"}}},
	}}
	got := Tickets(rows, testOptions())[0]
	if len(got.Actions) != 1 || got.Actions[0].ID != 3 {
		t.Fatalf("unexpected actions %+v", got.Actions)
	}
}

func TestActionsMalformed(t *testing.T) {
	rows := []models.RawRow{{"maintenance_actions": "{not json"}}
	got := Tickets(rows, testOptions())[0]
	if got.Actions == nil || len(got.Actions) != 0 {
		t.Fatalf("expected empty action list, got %#v", got.Actions)
	}
}

func TestNormalizationIdempotent(t *testing.T) {
	row := models.RawRow{
		"Title":               "AC unit",
		"status":              "Open",
		"registered_date":     "2024-02-10 08:30:00",
		"maintenance_actions": `[{"files":["/upload/a.jpg"]}]`,
	}
	fields := NewResolver([]string{"Title", "status", "registered_date", "maintenance_actions"}).Fields(TicketAliases)
	first := Ticket(row, fields, testOptions())
	second := Ticket(row, fields, testOptions())
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("normalization not deterministic:\n%+v\n%+v", first, second)
	}
}

func TestParticipationDerivedFields(t *testing.T) {
	rows := []models.RawRow{{
		"participant_id":          float64(1201),
		"state_name":              "Selangor",
		"event_date":              "2024-05-20",
		"attendance_rate_percent": "85.5%",
		"male_count":              "1,204",
		"latitude":                "abc",
	}}
	got := Participations(rows, Options{})[0]
	if got.ParticipantID != "1201" {
		t.Fatalf("expected integer id, got %q", got.ParticipantID)
	}
	if got.EventYear != 2024 || got.EventMonth != 5 || got.EventMonthName != "May" || got.EventQuarter != "Q2" {
		t.Fatalf("unexpected calendar fields %+v", got)
	}
	if got.EventMonthKey != "2024-05" {
		t.Fatalf("expected month key 2024-05, got %q", got.EventMonthKey)
	}
	if got.AttendanceRate != 85.5 || got.MaleCount != 1204 || got.Latitude != 0 {
		t.Fatalf("unexpected numbers %+v", got)
	}
	if got.MemberID != "" {
		t.Fatalf("expected empty member id, got %q", got.MemberID)
	}
}

func TestParticipationMissingDate(t *testing.T) {
	got := Participations([]models.RawRow{{"event_id": "E1"}}, Options{})[0]
	if got.EventAt.Valid || got.EventMonthKey != Unknown {
		t.Fatalf("expected unknown month key, got %+v", got)
	}
}

func TestParseDateShapes(t *testing.T) {
	want := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	for _, in := range []any{"2024-03-15", "2024/03/15", "03/15/2024", "15-Mar-2024", want, want.Unix(), want.UnixMilli()} {
		got, ok := ParseDate(in, time.UTC)
		if !ok || !got.Equal(want) {
			t.Fatalf("parse %v: got %v %v", in, got, ok)
		}
	}
	for in, exp := range map[string]time.Time{
		"20240315":       want,
		"20240315143000": want.Add(14*time.Hour + 30*time.Minute),
		"1710460800":     want,
		"1710460800000":  want,
	} {
		got, ok := ParseDate(in, time.UTC)
		if !ok || !got.Equal(exp) {
			t.Fatalf("parse %q: got %v %v, want %v", in, got, ok, exp)
		}
	}
	for _, in := range []any{"", "2024", "12345", "20241345", "garbage", nil, float64(-1)} {
		if _, ok := ParseDate(in, time.UTC); ok {
			t.Fatalf("expected %v to be rejected", in)
		}
	}
}
