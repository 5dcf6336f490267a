package metrics

import (
	"errors"
	"net/http"

	"student_registry/internal/pipeline"
	"student_registry/internal/service/xlsx"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Источники операций
const (
	SourceTelegram = "telegram"
	SourceHTTP     = "http"
)

// Metrics счетчики реестра. Методы безопасны для nil.
type Metrics struct {
	registry       *prometheus.Registry
	added          *prometheus.CounterVec
	skipped        *prometheus.CounterVec
	deleted        prometheus.Counter
	importFailures *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		added: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "registry_students_added_total",
			Help: "Students committed to the registry.",
		}, []string{"source"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "registry_students_skipped_total",
			Help: "Entries rejected by validation or duplicate detection.",
		}, []string{"source"}),
		deleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "registry_students_deleted_total",
			Help: "Students removed by confirmed deletion.",
		}),
		importFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "registry_import_failures_total",
			Help: "Workbook imports rejected before anything was committed.",
		}, []string{"reason"}),
	}
	m.registry.MustRegister(
		m.added, m.skipped, m.deleted, m.importFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler отдает метрики в формате Prometheus
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry для тестов и дополнительных коллекторов
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveAdd учитывает одиночное добавление
func (m *Metrics) ObserveAdd(source string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.skipped.WithLabelValues(source).Inc()
		return
	}
	m.added.WithLabelValues(source).Inc()
}

// ObserveBatch учитывает итог пакета
func (m *Metrics) ObserveBatch(source string, res pipeline.BatchResult) {
	if m == nil {
		return
	}
	m.added.WithLabelValues(source).Add(float64(res.Accepted))
	m.skipped.WithLabelValues(source).Add(float64(res.Skipped))
}

func (m *Metrics) ObserveDelete() {
	if m == nil {
		return
	}
	m.deleted.Inc()
}

// ObserveImportFailure учитывает отклоненный файл
func (m *Metrics) ObserveImportFailure(err error) {
	if m == nil || err == nil {
		return
	}
	m.importFailures.WithLabelValues(ImportFailureReason(err)).Inc()
}

// ImportFailureReason метка причины отказа импорта
func ImportFailureReason(err error) string {
	var missing *xlsx.MissingColumnError
	switch {
	case errors.As(err, &missing):
		return "missing_column"
	case errors.Is(err, xlsx.ErrEmptyWorkbook):
		return "empty"
	case errors.Is(err, xlsx.ErrCorruptWorkbook):
		return "corrupt"
	}
	return "other"
}
