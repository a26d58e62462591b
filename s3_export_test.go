package featuremill

import (
	"context"
	"testing"
)

func TestNewS3Exporter_Validation(t *testing.T) {
	if _, err := NewS3Exporter(context.Background(), S3ExporterConfig{}); err == nil {
		t.Error("missing bucket should fail")
	}

	exp, err := NewS3Exporter(context.Background(), S3ExporterConfig{
		Bucket:       "features",
		Endpoint:     "http://localhost:9000",
		UsePathStyle: true,
	})
	if err != nil {
		t.Fatalf("NewS3Exporter failed: %v", err)
	}
	if exp.config.Region != "us-east-1" {
		t.Errorf("Region default = %q, want us-east-1", exp.config.Region)
	}
	if exp.config.MaxRetries != 3 {
		t.Errorf("MaxRetries default = %d, want 3", exp.config.MaxRetries)
	}
}
