package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegistry(t *testing.T) {
	if Registry == nil {
		t.Fatal("Registry is nil")
	}
	if Registry != prometheus.DefaultRegisterer {
		t.Error("Registry should be the default prometheus registerer")
	}
}
