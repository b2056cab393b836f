package services

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"testing"
	"time"
)

func TestBuildArchiveZip(t *testing.T) {
	oldest := time.Date(2026, time.July, 1, 8, 0, 0, 0, time.UTC)
	newest := time.Date(2026, time.July, 20, 17, 30, 0, 0, time.UTC)
	logs := []ArchivedLog{
		{
			ID: 1, UserID: 4, UserName: "dr.lee", UserRole: "therapist",
			Action: "CREATE", Resource: "schedules", ResourceID: 11,
			Details:   map[string]any{"day_of_week": "Monday"},
			IPAddress: "10.0.0.1", CreatedAt: oldest,
		},
		{
			ID: 2, UserID: 9, UserName: "sam", UserRole: "individual",
			Action: "UPDATE", Resource: "appointments", ResourceID: 3,
			IPAddress: "10.0.0.2", CreatedAt: newest,
		},
	}

	buf, err := buildArchiveZip(logs, "audit_logs_20260701_20260720.zip", oldest, newest)
	if err != nil {
		t.Fatalf("buildArchiveZip: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("read zip: %v", err)
	}
	entries := map[string]*zip.File{}
	for _, f := range zr.File {
		entries[f.Name] = f
	}
	for _, name := range []string{"audit_logs.json", "audit_logs.csv", "manifest.json"} {
		if _, ok := entries[name]; !ok {
			t.Fatalf("archive missing %s", name)
		}
	}

	rc, err := entries["audit_logs.csv"].Open()
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer rc.Close()
	rows, err := csv.NewReader(rc).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("csv rows = %d, want header + 2", len(rows))
	}
	if rows[0][2] != "User Name" || rows[0][3] != "Role" {
		t.Errorf("csv header = %v", rows[0])
	}
	if rows[1][2] != "dr.lee" || rows[1][4] != "CREATE" {
		t.Errorf("first row = %v", rows[1])
	}

	mc, err := entries["manifest.json"].Open()
	if err != nil {
		t.Fatalf("open manifest: %v", err)
	}
	defer mc.Close()
	raw, err := io.ReadAll(mc)
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	var manifest map[string]any
	if err := json.Unmarshal(raw, &manifest); err != nil {
		t.Fatalf("parse manifest: %v", err)
	}
	if manifest["record_count"].(float64) != 2 {
		t.Errorf("record_count = %v, want 2", manifest["record_count"])
	}
	if manifest["description"] != archiveDescription {
		t.Errorf("description = %v", manifest["description"])
	}
}
