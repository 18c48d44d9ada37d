package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	quill "github.com/awalters/quill"
)

func TestOutputSyncResults_JSON(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatJSON, &out, &errBuf)

	results := []quill.SyncResult{
		{AccountID: 1, FeedsTotal: 4, FeedsFailed: 1, NewArticles: 12},
	}
	if err := f.OutputSyncResults(results); err != nil {
		t.Fatalf("OutputSyncResults failed: %v", err)
	}

	var decoded []quill.SyncResult
	if err := json.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	if len(decoded) != 1 || decoded[0].NewArticles != 12 {
		t.Errorf("decoded = %+v, want one result with 12 new articles", decoded)
	}
}

func TestOutputSyncResults_Text(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatText, &out, &errBuf)

	results := []quill.SyncResult{
		{AccountID: 1, FeedsTotal: 4, FeedsFailed: 1, NewArticles: 12},
		{AccountID: 2, Skipped: true, SkipReason: "waiting for wifi"},
	}
	if err := f.OutputSyncResults(results); err != nil {
		t.Fatalf("OutputSyncResults failed: %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "account=1\tfeeds=4\tfailed=1\tnew=12") {
		t.Errorf("missing sync line in output: %s", got)
	}
	if !strings.Contains(got, "skipped=waiting for wifi") {
		t.Errorf("missing skip line in output: %s", got)
	}
}

func TestOutputSyncResults_Human(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatHuman, &out, &errBuf)

	results := []quill.SyncResult{
		{AccountID: 1, FeedsTotal: 4, FeedsFailed: 1, NewArticles: 12},
	}
	if err := f.OutputSyncResults(results); err != nil {
		t.Fatalf("OutputSyncResults failed: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "12 new articles") || !strings.Contains(got, "1 feeds failed") {
		t.Errorf("unexpected human output: %s", got)
	}
}

func TestOutputSyncResults_UnknownFormat(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(Format("xml"), &out, &errBuf)
	if err := f.OutputSyncResults(nil); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestOutputAccountList(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatText, &out, &errBuf)

	last := time.Date(2026, 3, 14, 9, 26, 0, 0, time.UTC)
	accounts := []quill.Account{
		{ID: 1, Type: quill.AccountLocal},
		{ID: 2, Type: quill.AccountGReader, Endpoint: "https://reader.example.com", LastSync: &last},
	}
	if err := f.OutputAccountList(accounts); err != nil {
		t.Fatalf("OutputAccountList failed: %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "id=1\ttype=local") {
		t.Errorf("missing local account line: %s", got)
	}
	if !strings.Contains(got, "last_sync=2026-03-14T09:26:00Z") {
		t.Errorf("missing last sync timestamp: %s", got)
	}
}

func TestOutputAccountList_HumanEmpty(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatHuman, &out, &errBuf)
	if err := f.OutputAccountList(nil); err != nil {
		t.Fatalf("OutputAccountList failed: %v", err)
	}
	if !strings.Contains(out.String(), "No accounts configured") {
		t.Errorf("unexpected output: %s", out.String())
	}
}

func TestOutputArticleList_Text(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatText, &out, &errBuf)

	articles := []quill.Article{
		{ID: "a1", Title: "Hello", Link: "https://example.com/1", IsUnread: true},
	}
	if err := f.OutputArticleList(articles); err != nil {
		t.Fatalf("OutputArticleList failed: %v", err)
	}
	if !strings.Contains(out.String(), "id=a1\tunread=true\tstarred=false\ttitle=Hello") {
		t.Errorf("unexpected output: %s", out.String())
	}
}

func TestOutputArticleList_HumanTruncatesDescription(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatHuman, &out, &errBuf)

	articles := []quill.Article{
		{
			ID:          "a1",
			Title:       "Long one",
			Link:        "https://example.com/1",
			Description: strings.Repeat("x", 300),
			Date:        time.Now(),
		},
	}
	if err := f.OutputArticleList(articles); err != nil {
		t.Fatalf("OutputArticleList failed: %v", err)
	}
	if !strings.Contains(out.String(), strings.Repeat("x", 200)+"...") {
		t.Errorf("description not truncated: %s", out.String())
	}
	if strings.Contains(out.String(), strings.Repeat("x", 201)) {
		t.Errorf("description too long: %s", out.String())
	}
}

func TestOutputImportResult_Human(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatHuman, &out, &errBuf)

	res := &quill.OPMLImportResult{GroupsAdded: 1, FeedsAdded: 3, FeedsSkipped: 2}
	if err := f.OutputImportResult(res); err != nil {
		t.Fatalf("OutputImportResult failed: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "Imported 3 feeds in 1 new groups") || !strings.Contains(got, "2 already subscribed") {
		t.Errorf("unexpected output: %s", got)
	}
}

func TestErrorAndWarningGoToStderr(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatText, &out, &errBuf)

	f.Error("boom: %d", 7)
	f.Warning("careful")

	if out.Len() != 0 {
		t.Errorf("stdout should be empty, got %s", out.String())
	}
	if !strings.Contains(errBuf.String(), "boom: 7") || !strings.Contains(errBuf.String(), "Warning: careful") {
		t.Errorf("unexpected stderr: %s", errBuf.String())
	}
}
