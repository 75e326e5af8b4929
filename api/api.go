package api

import (
	"crypto/subtle"
	"encoding/json"
	"strings"

	"github.com/0xcafe-io/iz"
	appErrors "github.com/fatali-fataliyev/wallet_tracker/customErrors"
	"github.com/fatali-fataliyev/wallet_tracker/internal/auth"
	"github.com/fatali-fataliyev/wallet_tracker/internal/budget"
	"github.com/fatali-fataliyev/wallet_tracker/internal/contextutil"
	"github.com/fatali-fataliyev/wallet_tracker/logging"
)

type Api struct {
	Service *budget.BudgetTracker
	// OperatorToken guards the /api/admin endpoints; empty disables them.
	OperatorToken string
}

func NewApi(service *budget.BudgetTracker, operatorToken string) *Api {
	return &Api{
		Service:       service,
		OperatorToken: operatorToken,
	}
}

// callerID returns the id of the caller, authenticated upstream and put on
// the context by WithCaller.
func callerID(r *iz.Request) (string, bool) {
	return contextutil.UserIDFromContext(r.Context())
}

func missingCaller() iz.Responder {
	return iz.Respond().Status(401).JSON(ErrorResponse{
		Code:    appErrors.ErrAuth,
		Message: UserIDHeader + " header is required.",
	})
}

// checkOperator returns a non-nil Responder when the request does not carry
// the operator token.
func (api *Api) checkOperator(r *iz.Request) iz.Responder {
	if api.OperatorToken == "" {
		return iz.Respond().Status(403).JSON(ErrorResponse{
			Code:    appErrors.ErrAuth,
			Message: "Operator endpoints are disabled.",
		})
	}
	token := strings.TrimSpace(r.Header.Get(OperatorTokenHeader))
	if token == "" {
		return iz.Respond().Status(401).JSON(ErrorResponse{
			Code:    appErrors.ErrAuth,
			Message: OperatorTokenHeader + " header is required.",
		})
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(api.OperatorToken)) != 1 {
		logging.Logger.Warnf("[TraceID=%s] | rejected operator request to %s", contextutil.TraceIDFromContext(r.Context()), r.URL.Path)
		return iz.Respond().Status(403).JSON(ErrorResponse{
			Code:    appErrors.ErrAuth,
			Message: "Invalid operator token.",
		})
	}
	return nil
}

func failed(r *iz.Request, action string, err error) iz.Responder {
	status := httpStatusFromError(err)
	traceID := contextutil.TraceIDFromContext(r.Context())
	if status >= 500 {
		logging.Logger.Errorf("[TraceID=%s] | failed to %s | Error: %v", traceID, action, err)
	} else {
		logging.Logger.Infof("[TraceID=%s] | failed to %s: %s", traceID, action, appErrors.MessageOf(err))
	}
	return iz.Respond().Status(status).JSON(errorToHttp(err))
}

func (api *Api) SaveUserHandler(r *iz.Request) iz.Responder {
	var newUserReq SaveUserRequest
	if err := json.NewDecoder(r.Body).Decode(&newUserReq); err != nil {
		return failed(r, "parse register request", decodeError(err))
	}

	newUser := auth.NewUser{
		UserName:      newUserReq.UserName,
		PasswordPlain: newUserReq.Password,
		Email:         newUserReq.Email,
	}

	user, wallet, err := api.Service.RegisterUser(r.Context(), newUser)
	if err != nil {
		return failed(r, "register user", err)
	}

	resp := UserCreatedResponse{
		Message:  "Registration Completed",
		UserID:   user.ID,
		UserName: user.UserName,
		Wallet:   WalletToHttp(wallet),
	}
	return iz.Respond().Status(201).JSON(resp)
}

func (api *Api) GetWalletHandler(r *iz.Request) iz.Responder {
	userID, ok := callerID(r)
	if !ok {
		return missingCaller()
	}

	wallet, err := api.Service.GetWallet(r.Context(), userID)
	if err != nil {
		return failed(r, "get wallet", err)
	}
	return iz.Respond().Status(200).JSON(WalletToHttp(wallet))
}

func (api *Api) SaveTransactionHandler(r *iz.Request) iz.Responder {
	userID, ok := callerID(r)
	if !ok {
		return missingCaller()
	}

	var newTransactionReq CreateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&newTransactionReq); err != nil {
		return failed(r, "parse save transaction request", decodeError(err))
	}

	newTransaction, err := newTransactionReq.ToTransactionRequest()
	if err != nil {
		return failed(r, "save transaction", err)
	}

	created, err := api.Service.ProcessTransaction(r.Context(), userID, newTransaction)
	if err != nil {
		return failed(r, "save transaction", err)
	}
	return iz.Respond().Status(201).JSON(TransactionToHttp(created))
}

func (api *Api) DeleteTransactionHandler(r *iz.Request) iz.Responder {
	userID, ok := callerID(r)
	if !ok {
		return missingCaller()
	}

	tID := r.PathValue("id")
	if err := api.Service.DeleteTransaction(r.Context(), tID, userID); err != nil {
		return failed(r, "delete transaction", err)
	}
	return iz.Respond().Status(200).JSON(MessageResponse{Message: "transaction deleted successfully"})
}

func (api *Api) DashboardHandler(r *iz.Request) iz.Responder {
	userID, ok := callerID(r)
	if !ok {
		return missingCaller()
	}

	month, err := ResolveMonth(r.URL.Query(), api.Service.CurrentMonth())
	if err != nil {
		return failed(r, "get dashboard", err)
	}

	wallet, summary, err := api.Service.Dashboard(r.Context(), userID, month)
	if err != nil {
		return failed(r, "get dashboard", err)
	}
	return iz.Respond().Status(200).JSON(DashboardToHttp(wallet, summary))
}

func (api *Api) TopCategoriesHandler(r *iz.Request) iz.Responder {
	userID, ok := callerID(r)
	if !ok {
		return missingCaller()
	}

	n, err := LimitParam(r.URL.Query(), budget.DefaultTopCategories)
	if err != nil {
		return failed(r, "get top categories", err)
	}

	shares, err := api.Service.TopCategories(r.Context(), userID, n)
	if err != nil {
		return failed(r, "get top categories", err)
	}
	return iz.Respond().Status(200).JSON(ListCategoriesResponse{Categories: sharesToHttp(shares)})
}

func (api *Api) AllCategoriesHandler(r *iz.Request) iz.Responder {
	userID, ok := callerID(r)
	if !ok {
		return missingCaller()
	}

	shares, err := api.Service.AllExpenseCategories(r.Context(), userID)
	if err != nil {
		return failed(r, "get expense categories", err)
	}
	return iz.Respond().Status(200).JSON(ListCategoriesResponse{Categories: sharesToHttp(shares)})
}

func (api *Api) MonthlyReportHandler(r *iz.Request) iz.Responder {
	userID, ok := callerID(r)
	if !ok {
		return missingCaller()
	}

	month, err := ResolveMonth(r.URL.Query(), api.Service.CurrentMonth())
	if err != nil {
		return failed(r, "get monthly report", err)
	}

	report, err := api.Service.MonthlyReport(r.Context(), userID, month)
	if err != nil {
		return failed(r, "get monthly report", err)
	}
	return iz.Respond().Status(200).JSON(ReportToHttp(report))
}

func (api *Api) GetBudgetsHandler(r *iz.Request) iz.Responder {
	userID, ok := callerID(r)
	if !ok {
		return missingCaller()
	}

	month, year, err := MonthParams(r.URL.Query())
	if err != nil {
		return failed(r, "get budgets", err)
	}

	page, err := api.Service.GetBudgetPageData(r.Context(), userID, month, year)
	if err != nil {
		return failed(r, "get budgets", err)
	}
	return iz.Respond().Status(200).JSON(BudgetPageToHttp(page))
}

func (api *Api) SaveBudgetHandler(r *iz.Request) iz.Responder {
	userID, ok := callerID(r)
	if !ok {
		return missingCaller()
	}

	var budgetReq SaveBudgetRequest
	if err := json.NewDecoder(r.Body).Decode(&budgetReq); err != nil {
		return failed(r, "parse save budget request", decodeError(err))
	}

	req, err := budgetReq.ToBudgetRequest()
	if err != nil {
		return failed(r, "save budget", err)
	}

	saved, err := api.Service.CreateOrUpdateBudget(r.Context(), userID, req)
	if err != nil {
		return failed(r, "save budget", err)
	}
	return iz.Respond().Status(200).JSON(BudgetToHttp(saved))
}

func (api *Api) DeleteBudgetHandler(r *iz.Request) iz.Responder {
	userID, ok := callerID(r)
	if !ok {
		return missingCaller()
	}

	if err := api.Service.DeleteBudget(r.Context(), r.PathValue("id"), userID); err != nil {
		return failed(r, "delete budget", err)
	}
	return iz.Respond().Status(200).JSON(MessageResponse{Message: "budget deleted successfully"})
}

func (api *Api) SaveSubscriptionHandler(r *iz.Request) iz.Responder {
	userID, ok := callerID(r)
	if !ok {
		return missingCaller()
	}

	var subReq SaveSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&subReq); err != nil {
		return failed(r, "parse save subscription request", decodeError(err))
	}

	req, err := subReq.ToSubscriptionRequest()
	if err != nil {
		return failed(r, "save subscription", err)
	}

	created, err := api.Service.Subscriptions.CreateSubscription(r.Context(), userID, req)
	if err != nil {
		return failed(r, "save subscription", err)
	}
	return iz.Respond().Status(201).JSON(SubscriptionToHttp(created))
}

func (api *Api) ActiveSubscriptionsHandler(r *iz.Request) iz.Responder {
	userID, ok := callerID(r)
	if !ok {
		return missingCaller()
	}

	subs, err := api.Service.Subscriptions.ActiveSubscriptions(r.Context(), userID)
	if err != nil {
		return failed(r, "get active subscriptions", err)
	}
	return iz.Respond().Status(200).JSON(ListSubscriptionsResponse{Subscriptions: subscriptionsToHttp(subs)})
}

func (api *Api) PaidSubscriptionsHandler(r *iz.Request) iz.Responder {
	userID, ok := callerID(r)
	if !ok {
		return missingCaller()
	}

	month, err := ResolveMonth(r.URL.Query(), api.Service.CurrentMonth())
	if err != nil {
		return failed(r, "get paid subscriptions", err)
	}

	subs, err := api.Service.Subscriptions.PaidSubscriptionsForMonth(r.Context(), userID, month)
	if err != nil {
		return failed(r, "get paid subscriptions", err)
	}
	return iz.Respond().Status(200).JSON(ListSubscriptionsResponse{Subscriptions: subscriptionsToHttp(subs)})
}

func (api *Api) PaySubscriptionHandler(r *iz.Request) iz.Responder {
	userID, ok := callerID(r)
	if !ok {
		return missingCaller()
	}

	paid, err := api.Service.PaySubscription(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		return failed(r, "pay subscription", err)
	}
	return iz.Respond().Status(200).JSON(SubscriptionToHttp(paid))
}

func (api *Api) DeleteSubscriptionHandler(r *iz.Request) iz.Responder {
	userID, ok := callerID(r)
	if !ok {
		return missingCaller()
	}

	if err := api.Service.Subscriptions.DeleteSubscription(r.Context(), r.PathValue("id"), userID); err != nil {
		return failed(r, "delete subscription", err)
	}
	return iz.Respond().Status(200).JSON(MessageResponse{Message: "subscription deleted successfully"})
}

// NotifyExpiringHandler runs one expiring-subscription notice pass. It is
// meant for an operator or an external scheduler holding the operator token.
func (api *Api) NotifyExpiringHandler(r *iz.Request) iz.Responder {
	if denied := api.checkOperator(r); denied != nil {
		return denied
	}

	sent, err := api.Service.Subscriptions.NotifyExpiringSubscriptions(r.Context())
	if err != nil {
		return failed(r, "notify expiring subscriptions", err)
	}
	return iz.Respond().Status(200).JSON(CountResponse{Message: "expiring subscription notices sent", Sent: sent})
}

// MonthlyReportsHandler sends the monthly report of the given month
// (default: previous month) to every user.
func (api *Api) MonthlyReportsHandler(r *iz.Request) iz.Responder {
	if denied := api.checkOperator(r); denied != nil {
		return denied
	}

	month, err := ResolveMonth(r.URL.Query(), api.Service.CurrentMonth().Previous())
	if err != nil {
		return failed(r, "send monthly reports", err)
	}

	sent, err := api.Service.SendMonthlyReports(r.Context(), month)
	if err != nil {
		return failed(r, "send monthly reports", err)
	}
	return iz.Respond().Status(200).JSON(CountResponse{Message: "monthly reports sent for " + month.Name(), Sent: sent})
}
