package api

import (
	"net/http"
	"strings"

	"github.com/0xcafe-io/iz"
	"github.com/fatali-fataliyev/wallet_tracker/internal/contextutil"
	"github.com/fatali-fataliyev/wallet_tracker/logging"
)

const (
	TraceIDHeader       = "X-Trace-ID"
	OperatorTokenHeader = "X-Operator-Token"
)

// Routes registers every endpoint on a new mux.
func (api *Api) Routes() http.Handler {
	server := http.NewServeMux()

	// USER ENDPOINTS.
	server.HandleFunc("POST /api/register", iz.Bind(api.SaveUserHandler)) // Create User and wallet
	server.HandleFunc("GET /api/wallet", iz.Bind(api.GetWalletHandler))   // Wallet totals

	// TRANSACTION ENDPOINTS.
	server.HandleFunc("POST /api/transaction", iz.Bind(api.SaveTransactionHandler))          // Create Transaction
	server.HandleFunc("DELETE /api/transaction/{id}", iz.Bind(api.DeleteTransactionHandler)) // Delete Transaction

	// STATISTICS ENDPOINTS.
	server.HandleFunc("GET /api/dashboard", iz.Bind(api.DashboardHandler))                 // Month summary
	server.HandleFunc("GET /api/statistics/top", iz.Bind(api.TopCategoriesHandler))        // Top n expense categories
	server.HandleFunc("GET /api/statistics/categories", iz.Bind(api.AllCategoriesHandler)) // Every expense category
	server.HandleFunc("GET /api/report", iz.Bind(api.MonthlyReportHandler))                // Monthly report data

	// BUDGET ENDPOINTS.
	server.HandleFunc("GET /api/budget", iz.Bind(api.GetBudgetsHandler))           // Budget page for a month
	server.HandleFunc("POST /api/budget", iz.Bind(api.SaveBudgetHandler))          // Create or update budget
	server.HandleFunc("DELETE /api/budget/{id}", iz.Bind(api.DeleteBudgetHandler)) // Delete budget

	// SUBSCRIPTION ENDPOINTS.
	server.HandleFunc("POST /api/subscription", iz.Bind(api.SaveSubscriptionHandler))          // Create Subscription
	server.HandleFunc("GET /api/subscription", iz.Bind(api.ActiveSubscriptionsHandler))        // Unpaid subscriptions
	server.HandleFunc("GET /api/subscription/paid", iz.Bind(api.PaidSubscriptionsHandler))     // Paid in a month
	server.HandleFunc("POST /api/subscription/{id}/pay", iz.Bind(api.PaySubscriptionHandler))  // Pay from wallet
	server.HandleFunc("DELETE /api/subscription/{id}", iz.Bind(api.DeleteSubscriptionHandler)) // Delete Subscription

	// OPERATOR ENDPOINTS.
	server.HandleFunc("POST /api/admin/notify-expiring", iz.Bind(api.NotifyExpiringHandler)) // Expiring subscription notices
	server.HandleFunc("POST /api/admin/monthly-reports", iz.Bind(api.MonthlyReportsHandler)) // Monthly report notices

	return WithCaller(server)
}

// WithTraceID puts the request's X-Trace-ID (or a fresh one) on its context
// and echoes it back.
func WithTraceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := contextutil.WithTraceID(r.Context(), r.Header.Get(TraceIDHeader))
		traceID := contextutil.TraceIDFromContext(ctx)
		w.Header().Set(TraceIDHeader, traceID)
		logging.Logger.Debugf("[TraceID=%s] | %s %s", traceID, r.Method, r.URL.Path)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WithCaller puts the X-User-ID of the request on its context.
func WithCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
		if userID != "" {
			r = r.WithContext(contextutil.WithUserID(r.Context(), userID))
		}
		next.ServeHTTP(w, r)
	})
}
