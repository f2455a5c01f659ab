package controller

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	logf "sigs.k8s.io/controller-runtime/pkg/log"

	resourcev1alpha1 "github.com/konnektr-io/rest-resource/api/v1alpha1"
	"github.com/konnektr-io/rest-resource/internal/util"
	"github.com/konnektr-io/rest-resource/pkg/rest"
)

func parseManifest(serverURL, extra string) *resourcev1alpha1.RESTResource {
	manifests, err := resourcev1alpha1.ParseManifests(fmt.Sprintf(`
apiVersion: resource.konnektr.io/v1alpha1
kind: RESTResource
metadata:
  name: users
  generation: 3
spec:
  name: user
  url: %s/users/:id
  authenticationRef:
    type: bearer
    tokenEnv: API_TOKEN
  actions:
    - id: fetch
      responsePath: data
    - id: get
  sync:
    - action: fetch
      context:
        team: core
%s`, serverURL, extra))
	Expect(err).NotTo(HaveOccurred())
	Expect(manifests).To(HaveLen(1))
	return manifests[0]
}

func testAuthResolver() *rest.AuthResolver {
	resolver := rest.NewAuthResolver(logr.Discard())
	resolver.LookupEnv = func(key string) (string, bool) {
		if key == "API_TOKEN" {
			return "s3cret", true
		}
		return "", false
	}
	return resolver
}

func newReconciler(targets []*Target) *ResourceSyncReconciler {
	return &ResourceSyncReconciler{
		Store:               NewStore(targets, logf.Log),
		Log:                 logf.Log,
		RequestTimeout:      5 * time.Second,
		DefaultPollInterval: time.Minute,
	}
}

var _ = Describe("ResourceSync controller", func() {
	var (
		requests atomic.Int32
		status   atomic.Int32
		server   *httptest.Server
	)

	BeforeEach(func() {
		requests.Store(0)
		status.Store(http.StatusOK)
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requests.Add(1)
			if r.Header.Get("Authorization") != "Bearer s3cret" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(int(status.Load()))
			_, _ = w.Write([]byte(`{"data": [{"id": 1, "team": "core"}, {"id": 2, "team": "core"}]}`))
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	Describe("When reconciling a RESTResource", func() {
		It("Should run the sync actions and report readiness", func() {
			target, err := NewTarget(parseManifest(server.URL, "  pollInterval: 10s"), testAuthResolver())
			Expect(err).NotTo(HaveOccurred())
			r := newReconciler([]*Target{target})

			result, err := r.Reconcile(ctx, target)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.RequeueAfter).To(Equal(10 * time.Second))
			Expect(requests.Load()).To(Equal(int32(1)))

			st := target.Manifest.Status
			Expect(st.Items).To(Equal(2))
			Expect(st.LastPollTime).NotTo(BeNil())
			Expect(st.ObservedGeneration).To(Equal(int64(3)))
			Expect(meta.IsStatusConditionTrue(st.Conditions, ConditionReconciled)).To(BeTrue())
			Expect(meta.IsStatusConditionTrue(st.Conditions, ConditionHTTPConnected)).To(BeTrue())
		})

		It("Should use the default poll interval", func() {
			target, err := NewTarget(parseManifest(server.URL, ""), testAuthResolver())
			Expect(err).NotTo(HaveOccurred())

			result, err := newReconciler([]*Target{target}).Reconcile(ctx, target)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.RequeueAfter).To(Equal(time.Minute))
		})

		It("Should report HTTP error statuses while staying connected", func() {
			status.Store(http.StatusInternalServerError)
			target, err := NewTarget(parseManifest(server.URL, ""), testAuthResolver())
			Expect(err).NotTo(HaveOccurred())

			_, err = newReconciler([]*Target{target}).Reconcile(ctx, target)
			Expect(err).NotTo(HaveOccurred())

			conds := target.Manifest.Status.Conditions
			reconciled := meta.FindStatusCondition(conds, ConditionReconciled)
			Expect(reconciled).NotTo(BeNil())
			Expect(reconciled.Status).To(Equal(metav1.ConditionFalse))
			Expect(reconciled.Reason).To(Equal("SyncFailed"))
			Expect(reconciled.Message).To(ContainSubstring("500"))
			Expect(meta.IsStatusConditionTrue(conds, ConditionHTTPConnected)).To(BeTrue())
			Expect(target.Manifest.Status.LastPollTime).To(BeNil())
		})

		It("Should report unreachable APIs as disconnected", func() {
			manifest := parseManifest(server.URL, "")
			server.Close()
			target, err := NewTarget(manifest, testAuthResolver())
			Expect(err).NotTo(HaveOccurred())

			_, err = newReconciler([]*Target{target}).Reconcile(ctx, target)
			Expect(err).NotTo(HaveOccurred())
			Expect(meta.IsStatusConditionFalse(target.Manifest.Status.Conditions, ConditionHTTPConnected)).To(BeTrue())
		})

		It("Should reject an invalid poll interval without calling the API", func() {
			manifest := parseManifest(server.URL, "")
			manifest.Spec.PollInterval = "soon"
			target, err := NewTarget(manifest, testAuthResolver())
			Expect(err).NotTo(HaveOccurred())

			result, err := newReconciler([]*Target{target}).Reconcile(ctx, target)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.RequeueAfter).To(BeZero())
			Expect(requests.Load()).To(BeZero())

			reconciled := meta.FindStatusCondition(target.Manifest.Status.Conditions, ConditionReconciled)
			Expect(reconciled).NotTo(BeNil())
			Expect(reconciled.Reason).To(Equal("InvalidSpec"))
		})

		It("Should skip actions excluded by the selector", func() {
			target, err := NewTarget(parseManifest(server.URL, ""), testAuthResolver())
			Expect(err).NotTo(HaveOccurred())
			r := newReconciler([]*Target{target})
			r.Selector, err = util.ParseActionRefs("job/fetch")
			Expect(err).NotTo(HaveOccurred())

			_, err = r.Reconcile(ctx, target)
			Expect(err).NotTo(HaveOccurred())
			Expect(requests.Load()).To(BeZero())
		})

		It("Should fail when authentication cannot be resolved", func() {
			manifest := parseManifest(server.URL, "")
			manifest.Spec.AuthenticationRef.Type = "digest"
			_, err := NewTarget(manifest, testAuthResolver())
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("When running", func() {
		It("Should report targets that are not ready", func() {
			status.Store(http.StatusBadGateway)
			target, err := NewTarget(parseManifest(server.URL, ""), testAuthResolver())
			Expect(err).NotTo(HaveOccurred())

			err = newReconciler([]*Target{target}).RunOnce(ctx, []*Target{target})
			Expect(err).To(MatchError(ContainSubstring("user")))
		})

		It("Should poll until the context is done", func() {
			target, err := NewTarget(parseManifest(server.URL, "  pollInterval: 50ms"), testAuthResolver())
			Expect(err).NotTo(HaveOccurred())
			r := newReconciler([]*Target{target})

			runCtx, stop := context.WithCancel(ctx)
			done := make(chan struct{})
			go func() {
				defer GinkgoRecover()
				defer close(done)
				r.Run(runCtx, []*Target{target})
			}()

			Eventually(requests.Load, 5*time.Second, 10*time.Millisecond).Should(BeNumerically(">=", 3))
			stop()
			Eventually(done, 5*time.Second).Should(BeClosed())
		})
	})
})
