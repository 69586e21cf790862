package artifacts

import "testing"

func TestGCSPublicURLDefault(t *testing.T) {
	store := &GCSStore{bucket: "segbridge-artifacts"}

	got := store.PublicURL("runs/nightly/case_001/preview.png")
	want := "https://storage.googleapis.com/segbridge-artifacts/runs/nightly/case_001/preview.png"
	if got != want {
		t.Fatalf("PublicURL: want=%q got=%q", want, got)
	}
}

func TestGCSPublicURLEmulator(t *testing.T) {
	store := &GCSStore{
		bucket:       "segbridge-artifacts",
		emulatorHost: "http://fake-gcs:4443",
	}

	got := store.PublicURL("/runs/a b/preview.png")
	want := "http://fake-gcs:4443/storage/v1/b/segbridge-artifacts/o/runs%2Fa%20b%2Fpreview.png?alt=media"
	if got != want {
		t.Fatalf("PublicURL: want=%q got=%q", want, got)
	}
}

func TestContentTypeForKey(t *testing.T) {
	cases := map[string]string{
		"runs/x/preview.PNG": "image/png",
		"runs/x/output.json": "application/json",
		"manifests/val.yaml": "application/yaml",
		"runs/x/raw.bin":     "",
	}
	for key, want := range cases {
		if got := contentTypeForKey(key); got != want {
			t.Fatalf("contentTypeForKey(%q): want=%q got=%q", key, want, got)
		}
	}
}
