package server

import (
	"chemtrack-backend/internal/activity"
	"chemtrack-backend/internal/auth"
	"chemtrack-backend/internal/ledger"
	"chemtrack-backend/internal/models"
	"chemtrack-backend/internal/notify"
	"chemtrack-backend/internal/reporting"
	"chemtrack-backend/internal/users"

	"github.com/gofiber/fiber/v2"
)

func registerRoutes(app *fiber.App, d Deps) {
	rec := d.Recorder
	api := app.Group("/api")

	// Public auth
	api.Post("/auth/login", auth.LoginHandler(d.Auth))
	api.Post("/auth/register-super-admin", auth.RegisterSuperAdminHandler(d.Auth))
	api.Get("/auth/verify", auth.VerifyHandler(d.Auth))

	// Protected
	protected := api.Group("", auth.JWTMiddleware(d.JWTSecret), auth.LoadActiveUser(d.Auth))

	protected.Get("/auth/me", auth.MeHandler(d.Auth))
	protected.Post("/auth/change-password",
		activity.Track(rec, models.ActivityChangePassword, "admin_users"),
		auth.ChangePasswordHandler(d.Auth))
	protected.Post("/auth/logout", auth.LogoutHandler())

	// Chemicals and stock
	stock := auth.Require(models.CapManageStock)
	protected.Get("/chemicals", stock, ledger.ListChemicalsHandler(d.Ledger))
	protected.Get("/chemicals/:id", stock, ledger.GetChemicalHandler(d.Ledger))
	protected.Post("/chemicals", stock,
		activity.Track(rec, models.ActivityCreate, "chemicals"),
		ledger.CreateChemicalHandler(d.Ledger))
	protected.Delete("/chemicals/:id", stock,
		activity.Track(rec, models.ActivityDelete, "chemicals"),
		ledger.DeleteChemicalHandler(d.Ledger))
	protected.Post("/stock/apply", stock,
		activity.Track(rec, models.ActivityStockUpdate, "chemicals"),
		ledger.ApplyStockHandler(d.Ledger))

	allTx := auth.Require(models.CapViewAllTransactions)
	protected.Get("/stock/transactions", allTx, reporting.AllTransactionsHandler(d.Reporting))
	protected.Get("/stock/stats", allTx, reporting.StatsHandler(d.Reporting))

	// Reports
	monthly := auth.Require(models.CapViewMonthlySummary)
	protected.Get("/reports/monthly", monthly, reporting.MonthlySummaryHandler(d.Reporting))
	protected.Get("/reports/monthly/export", monthly, reporting.MonthlyExportHandler(d.Reporting))

	mine := auth.Require(models.CapViewOwnTransactions)
	protected.Get("/reports/mine", mine, reporting.MyTransactionsHandler(d.Reporting))
	protected.Get("/reports/mine/export", mine, reporting.MyTransactionsExportHandler(d.Reporting))

	// Notifications
	protected.Post("/notifications/check-low-stock",
		auth.Require(models.CapTriggerLowStock),
		activity.Track(rec, models.ActivityCheckLowStock, "chemicals"),
		notify.CheckLowStockHandler(d.Monitor))

	// Super admin: users
	userRoutes := protected.Group("/users", auth.Require(models.CapManageUsers))
	userRoutes.Get("/", users.ListHandler(d.Users))
	userRoutes.Post("/", activity.Track(rec, models.ActivityCreate, "admin_users"), users.CreateHandler(d.Users))
	userRoutes.Put("/:id", activity.Track(rec, models.ActivityUpdate, "admin_users"), users.UpdateHandler(d.Users))
	userRoutes.Delete("/:id", activity.Track(rec, models.ActivityDelete, "admin_users"), users.DeleteHandler(d.Users))

	// Super admin: activity
	activityRoutes := protected.Group("/activity", auth.Require(models.CapViewActivity))
	activityRoutes.Get("/", activity.ListHandler(d.Activity, d.Location))
	activityRoutes.Get("/stats", activity.StatsHandler(d.Activity))
}
