package utils

import "testing"

func TestBuildObjectAccessURL(t *testing.T) {
	t.Setenv("STORAGE_ACCESS_BASE_URL", "")
	t.Setenv("GCS_URL", "storage.googleapis.com")
	t.Setenv("GCS_BUCKET", "kilometri-files")

	got := BuildObjectAccessURL("reports/pdf/1_2026_01.pdf")
	expected := "https://storage.googleapis.com/kilometri-files/reports/pdf/1_2026_01.pdf"
	if got != expected {
		t.Fatalf("got %q, expected %q", got, expected)
	}
}

func TestBuildObjectAccessURL_Template(t *testing.T) {
	t.Setenv("STORAGE_ACCESS_BASE_URL", "https://cdn.example.com/files/{objectKey}")
	if got := BuildObjectAccessURL("avatars/1/x.jpg"); got != "https://cdn.example.com/files/avatars/1/x.jpg" {
		t.Fatalf("got %q", got)
	}
}

func TestExtractObjectKeyFromURL(t *testing.T) {
	t.Setenv("STORAGE_ACCESS_BASE_URL", "")
	t.Setenv("GCS_URL", "")
	t.Setenv("GCS_BUCKET", "")

	cases := []struct {
		in       string
		expected string
	}{
		{"", ""},
		{"reports/pdf/1_2026_01.pdf", "reports/pdf/1_2026_01.pdf"},
		{"reports/../etc/passwd", ""},
		{"gs://kilometri-files/reports/excel/1_2026_01.xlsx", "reports/excel/1_2026_01.xlsx"},
		{"https://storage.googleapis.com/kilometri-files/avatars/1/a.jpg", "avatars/1/a.jpg"},
		{"https://kilometri-files.storage.googleapis.com/avatars/1/a.jpg", "avatars/1/a.jpg"},
		{"https://unknown.example.com/whatever", ""},
	}
	for _, tc := range cases {
		if got := ExtractObjectKeyFromURL(tc.in); got != tc.expected {
			t.Fatalf("ExtractObjectKeyFromURL(%q) = %q, expected %q", tc.in, got, tc.expected)
		}
	}
}
