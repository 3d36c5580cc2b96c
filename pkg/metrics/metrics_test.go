package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsOptions(t *testing.T) {
	Convey("Given metrics options", t, func() {
		Convey("When creating a manager with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test_namespace"),
				WithSubsystem("test_subsystem"),
				WithMetricPrefix("test_prefix"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithMetricsEnabled(true),
				WithRefreshInterval(5*time.Second),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then the options should be applied", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "test_namespace")
				So(manager.subsystem, ShouldEqual, "test_subsystem")
				So(manager.metricPrefix, ShouldEqual, "test_prefix")
				So(manager.histogramBuckets, ShouldResemble, []float64{0.1, 0.5, 1.0})
				So(manager.refreshInterval, ShouldEqual, 5*time.Second)
			})

			Convey("And the metrics should be registered with the prefix", func() {
				manager.contestsStarted.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "test_namespace_test_subsystem_test_prefix_contests_started_total" {
						found = true
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When passing empty values", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace(""),
				WithSubsystem(""),
				WithHistogramBuckets(nil),
				WithCustomLabels(nil),
				WithRefreshInterval(-1*time.Second),
				WithPrometheusRegistry(registry),
			)

			Convey("Then the defaults should be kept", func() {
				So(manager.namespace, ShouldEqual, "tally")
				So(manager.subsystem, ShouldEqual, "contest")
				So(manager.histogramBuckets, ShouldResemble, prometheus.DefBuckets)
				So(manager.refreshInterval, ShouldEqual, defaultRefreshInterval)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording contest metrics", func() {
			So(func() {
				RecordContestStarted()
				RecordContestFinished()
				RecordContestAborted()
				RecordRoundCompleted(1500 * time.Millisecond)
				RecordRoundForfeit()
			}, ShouldNotPanic)
		})

		Convey("When recording guess metrics", func() {
			So(func() {
				RecordGuessAccepted()
				RecordGuessRejected("duplicate")
				RecordGuessRejected("not_active")
				RecordPerfectGuess()
				RecordDisconnect()
			}, ShouldNotPanic)
		})

		Convey("When recording participant and pool metrics", func() {
			So(func() {
				AddActiveParticipants(3)
				AddActiveParticipants(-1)
				UpdateLobbySize(2)
				RecordQueueWait(3 * time.Second)
				UpdatePoolQueueSize(4)
				UpdatePoolQueueCapacity(128)
				UpdatePoolWorkers(8)
				RecordTaskLatency(20 * time.Millisecond)
				RecordTaskError()
				RecordPoolRejection()
			}, ShouldNotPanic)
		})

		Convey("When recording standings, notifier and HTTP metrics", func() {
			So(func() {
				UpdateStandingsRecords(10)
				RecordStandingsUpdate()
				RecordStandingsQueryLatency(time.Millisecond)
				RecordNotificationSent("nats", "round_result")
				RecordNotificationFailed("nats")
				RecordHTTPRequest("/guess", "POST", "202")
				RecordHTTPRequestDuration("/guess", "POST", "202", 3.5)
				AddWSConnections(1)
				AddWSConnections(-1)
				RecordErrorByComponent("contest", "barrier")
			}, ShouldNotPanic)
		})

		Convey("When scraping the custom registry", func() {
			RecordRoundCompleted(10 * time.Millisecond)
			rec := httptest.NewRecorder()
			promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

			Convey("Then the contest metrics should be exposed", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(strings.Contains(rec.Body.String(), "tally_contest_rounds_completed_total"), ShouldBeTrue)
			})
		})
	})
}

func TestMetricsConcurrency(t *testing.T) {
	Convey("Given metrics recorded from many goroutines", t, func() {
		done := make(chan bool, 10)
		for i := 0; i < 10; i++ {
			go func() {
				for j := 0; j < 100; j++ {
					RecordGuessAccepted()
					UpdatePoolQueueSize(j)
					RecordTaskLatency(time.Duration(j) * time.Millisecond)
					RecordHTTPRequest("/stats", "GET", "200")
				}
				done <- true
			}()
		}
		for i := 0; i < 10; i++ {
			<-done
		}

		Convey("Then no panics occur", func() {
			So(true, ShouldBeTrue)
		})
	})
}
