package gcp

import "testing"

func TestResolveObjectStoragePublicBaseURL(t *testing.T) {
	cases := []struct {
		name       string
		cfg        ObjectStorageConfig
		wantURL    string
		wantSource string
	}{
		{
			name:       "gcs default",
			cfg:        ObjectStorageConfig{Mode: ObjectStorageModeGCS},
			wantSource: "gcs_default",
		},
		{
			name:       "emulator fallback",
			cfg:        ObjectStorageConfig{Mode: ObjectStorageModeGCSEmulator, EmulatorHost: "http://fake-gcs:4443"},
			wantURL:    "http://fake-gcs:4443",
			wantSource: "storage_emulator_host",
		},
		{
			name:       "explicit override",
			cfg:        ObjectStorageConfig{Mode: ObjectStorageModeGCSEmulator, EmulatorHost: "http://fake-gcs:4443", PublicBaseURL: "http://localhost:4443/"},
			wantURL:    "http://localhost:4443",
			wantSource: "object_storage_public_base_url",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, source := resolveObjectStoragePublicBaseURL(tc.cfg)
			if got != tc.wantURL {
				t.Fatalf("baseURL: want=%q got=%q", tc.wantURL, got)
			}
			if source != tc.wantSource {
				t.Fatalf("source: want=%q got=%q", tc.wantSource, source)
			}
		})
	}
}

func TestGetPublicURLGCSDefault(t *testing.T) {
	bs := &bucketService{storageMode: ObjectStorageModeGCS, bucket: "artisan-assets"}

	got := bs.GetPublicURL("products/p1.glb")
	want := "https://storage.googleapis.com/artisan-assets/products/p1.glb"
	if got != want {
		t.Fatalf("GetPublicURL: want=%q got=%q", want, got)
	}
}

func TestGetPublicURLCDNDomainWins(t *testing.T) {
	bs := &bucketService{storageMode: ObjectStorageModeGCS, bucket: "artisan-assets", cdnDomain: "cdn.example.com"}

	got := bs.GetPublicURL("/products/p1.glb")
	want := "https://cdn.example.com/products/p1.glb"
	if got != want {
		t.Fatalf("GetPublicURL: want=%q got=%q", want, got)
	}
}

func TestGetPublicURLEmulatorMedia(t *testing.T) {
	bs := &bucketService{
		storageMode:   ObjectStorageModeGCSEmulator,
		bucket:        "artisan-assets",
		emulatorHost:  "http://fake-gcs:4443",
		publicBaseURL: "http://localhost:4443",
	}

	got := bs.GetPublicURL("products/p1.glb")
	want := "http://localhost:4443/storage/v1/b/artisan-assets/o/products%2Fp1.glb?alt=media"
	if got != want {
		t.Fatalf("GetPublicURL: want=%q got=%q", want, got)
	}
}

func TestGetPublicURLPublicBase(t *testing.T) {
	bs := &bucketService{storageMode: ObjectStorageModeGCS, bucket: "artisan-assets", publicBaseURL: "https://assets.example.com"}

	got := bs.GetPublicURL("products/p1.glb")
	want := "https://assets.example.com/artisan-assets/products/p1.glb"
	if got != want {
		t.Fatalf("GetPublicURL: want=%q got=%q", want, got)
	}
}

func TestContentTypeForKey(t *testing.T) {
	cases := map[string]string{
		"products/p1.glb":     "model/gltf-binary",
		"products/P1.GLB?v=2": "model/gltf-binary",
		"scene.gltf":          "model/gltf+json",
		"thumb.jpeg":          "image/jpeg",
		"blob":                "application/octet-stream",
	}
	for key, want := range cases {
		if got := contentTypeForKey(key); got != want {
			t.Fatalf("contentTypeForKey(%q): want=%q got=%q", key, want, got)
		}
	}
}
