package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry_Singleton(t *testing.T) {
	r1 := DefaultRegistry()
	r2 := DefaultRegistry()
	assert.Same(t, r1, r2)
	assert.Equal(t, "tiscrawler", r1.Namespace())
}

func TestMetricsRegistry_LazyInit(t *testing.T) {
	r := NewMetricsRegistry("test_lazy")
	require.NotNil(t, r.Crawl())
	require.NotNil(t, r.Cache())
	assert.Same(t, r.Crawl(), r.Crawl())
	assert.Same(t, r.Cache(), r.Cache())
}

func TestNewMetricsRegistry_DefaultNamespace(t *testing.T) {
	r := NewMetricsRegistry("")
	assert.Equal(t, "tiscrawler", r.Namespace())
}
