package services

import (
	"testing"
	"time"

	"theracare_go/database"
	"theracare_go/models"
)

func TestHealthReportWithDatabase(t *testing.T) {
	db := newTestDB(t)
	prev := database.DB
	database.DB = db
	t.Cleanup(func() { database.DB = prev })

	therapist := seedTherapist(t, db, "health@test.local")
	seedSlot(t, db, therapist.ID, models.Monday, "09:00", "09:30")

	svc := NewHealthService("", "")
	report := svc.GetHealthReport()

	if report.Status != "ok" {
		t.Errorf("status = %s, want ok", report.Status)
	}
	if report.Service != "TheraCare API" {
		t.Errorf("service = %s, want default name", report.Service)
	}
	if report.Workload == nil {
		t.Fatal("workload = nil, want counts while database is up")
	}
	if report.Workload.Therapists != 1 {
		t.Errorf("therapists = %d, want 1", report.Workload.Therapists)
	}
	if report.Workload.AvailableSlots != 1 {
		t.Errorf("available slots = %d, want 1", report.Workload.AvailableSlots)
	}

	deps := map[string]string{}
	for _, d := range report.Dependencies {
		deps[d.Name] = d.Status
	}
	if deps["mysql"] != "up" {
		t.Errorf("mysql dependency = %s, want up", deps["mysql"])
	}
	if _, ok := deps["s3"]; !ok {
		t.Error("s3 dependency missing from report")
	}
}

func TestHealthReportWithoutDatabase(t *testing.T) {
	prev := database.DB
	database.DB = nil
	t.Cleanup(func() { database.DB = prev })

	svc := NewHealthService("", "")
	report := svc.GetHealthReport()

	if report.Status != "critical" {
		t.Errorf("status = %s, want critical without a database", report.Status)
	}
	if report.Workload != nil {
		t.Error("workload reported while database is down")
	}
	if svc.HTTPStatusForOverall(report.Status) != 503 {
		t.Errorf("http status = %d, want 503", svc.HTTPStatusForOverall(report.Status))
	}
}

func TestCombineStatus(t *testing.T) {
	cases := []struct {
		current, candidate, want string
	}{
		{"ok", "ok", "ok"},
		{"ok", "degraded", "degraded"},
		{"degraded", "ok", "degraded"},
		{"degraded", "critical", "critical"},
		{"critical", "degraded", "critical"},
		{"bogus", "degraded", "degraded"},
	}
	for _, tc := range cases {
		if got := combineStatus(tc.current, tc.candidate); got != tc.want {
			t.Errorf("combineStatus(%s, %s) = %s, want %s", tc.current, tc.candidate, got, tc.want)
		}
	}
}

func TestHumanizeDuration(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{45 * time.Second, "45s"},
		{90 * time.Minute, "1h 30m"},
		{26*time.Hour + 5*time.Second, "1d 2h 5s"},
	}
	for _, tc := range cases {
		if got := humanizeDuration(tc.d); got != tc.want {
			t.Errorf("humanizeDuration(%v) = %s, want %s", tc.d, got, tc.want)
		}
	}
}
