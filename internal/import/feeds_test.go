package importfeeds

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"mpsync/syncer/internal/models"
)

type memFeeds map[string]models.Feed

func (m memFeeds) UpsertFeed(ctx context.Context, f *models.Feed) error {
	m[f.ID] = *f
	return nil
}

const sampleCSV = `id,name,cover,intro,status,update_time
MP_1,Daily,https://img/1,News every day,enabled,1700000000
MP_2,Weekly,,,0,
,Nameless,,,,
MP_3,Broken,,,maybe,
MP_4,"Quoted, name",,,1,
`

func TestImportFeedsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feeds.csv")
	if err := os.WriteFile(path, []byte(sampleCSV), 0o600); err != nil {
		t.Fatal(err)
	}
	store := memFeeds{}

	report, err := NewImporter(store).ImportFeeds(context.Background(), path)
	if err != nil {
		t.Fatalf("ImportFeeds() error = %v", err)
	}
	if report.Total != 5 || report.Imported != 3 || len(report.Errors) != 2 {
		t.Errorf("report = %+v", report)
	}

	daily := store["MP_1"]
	if daily.Name != "Daily" || daily.Cover != "https://img/1" || daily.UpdateTime != 1700000000 || daily.Status != models.StatusEnabled {
		t.Errorf("MP_1 = %+v", daily)
	}
	if store["MP_2"].Status != models.StatusInvalid {
		t.Errorf("MP_2 status = %v, want invalid", store["MP_2"].Status)
	}
	if store["MP_4"].Name != "Quoted, name" {
		t.Errorf("MP_4 name = %q", store["MP_4"].Name)
	}
	if store["MP_1"].HasHistory != models.MoreHistory {
		t.Error("imported feed should start with history to fetch")
	}
}

func TestImportFeedsFromURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("id,name\nMP_9,Remote\n"))
	}))
	defer srv.Close()
	store := memFeeds{}

	report, err := NewImporter(store).ImportFeeds(context.Background(), srv.URL+"/feeds.csv")
	if err != nil {
		t.Fatalf("ImportFeeds() error = %v", err)
	}
	if report.Imported != 1 || store["MP_9"].Name != "Remote" {
		t.Errorf("report = %+v, store = %+v", report, store)
	}
}

func TestImportFeedsMissingColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feeds.csv")
	if err := os.WriteFile(path, []byte("url,title\nx,y\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewImporter(memFeeds{}).ImportFeeds(context.Background(), path); err == nil {
		t.Error("ImportFeeds() error = nil for a header without id")
	}
}
