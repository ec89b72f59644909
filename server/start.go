package server

import (
	"context"
	"net/http"
	"os"

	cachepackage "todo-service/cache"
	"todo-service/database"
	"todo-service/handlers"

	"github.com/umakantv/go-utils/cache"
	"github.com/umakantv/go-utils/httpserver"
	"github.com/umakantv/go-utils/logger"
	"go.uber.org/zap"
)

// sessionAuth resolves the session cookie through the cache so that
// authenticated requests carry the username in request logs. The actual
// gate lives in the handlers (requireSession), which redirects anonymous
// callers to /login instead of rejecting them at the framework level.
func sessionAuth(c cache.Cache) func(r *http.Request) (bool, httpserver.RequestAuth) {
	return func(r *http.Request) (bool, httpserver.RequestAuth) {
		user, err := handlers.SessionUserFromRequest(r, c)
		if err != nil {
			return false, httpserver.RequestAuth{}
		}
		return true, httpserver.RequestAuth{
			Type:   "session",
			Client: user.Username,
			Claims: map[string]interface{}{"user_id": user.ID},
		}
	}
}

func StartServer() {
	// Initialize logger
	logger.Init(logger.LoggerConfig{
		CallerKey:  "file",
		TimeKey:    "timestamp",
		CallerSkip: 1,
	})

	logger.Info("Starting Todo Service...")

	// Initialize database
	dbConn := database.InitializeDatabase()
	defer dbConn.Close()

	// Initialize session cache
	sessionCache := cachepackage.InitializeCache()
	defer sessionCache.Close()

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(dbConn, sessionCache)
	listHandler := handlers.NewListHandler(dbConn, sessionCache)
	taskHandler := handlers.NewTaskHandler(dbConn, sessionCache)
	tagHandler := handlers.NewTagHandler(dbConn, sessionCache)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := httpserver.New(port, sessionAuth(sessionCache))

	server.Register(httpserver.Route{
		Name:     "HealthCheck",
		Method:   "GET",
		Path:     "/health",
		AuthType: "none",
	}, httpserver.HandlerFunc(func(ctx context.Context, w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "todo-service"}`))
	}))

	// Auth
	server.Register(httpserver.Route{Name: "RegisterForm", Method: "GET", Path: "/register", AuthType: "none"},
		httpserver.HandlerFunc(authHandler.RegisterForm))
	server.Register(httpserver.Route{Name: "Register", Method: "POST", Path: "/register", AuthType: "none"},
		httpserver.HandlerFunc(authHandler.Register))
	server.Register(httpserver.Route{Name: "LoginForm", Method: "GET", Path: "/login", AuthType: "none"},
		httpserver.HandlerFunc(authHandler.LoginForm))
	server.Register(httpserver.Route{Name: "Login", Method: "POST", Path: "/login", AuthType: "none"},
		httpserver.HandlerFunc(authHandler.Login))
	server.Register(httpserver.Route{Name: "Logout", Method: "POST", Path: "/logout", AuthType: "none"},
		httpserver.HandlerFunc(authHandler.Logout))
	server.Register(httpserver.Route{Name: "DeleteAccount", Method: "POST", Path: "/delete_account", AuthType: "none"},
		httpserver.HandlerFunc(authHandler.DeleteAccount))

	// Lists
	server.Register(httpserver.Route{Name: "Home", Method: "GET", Path: "/", AuthType: "none"},
		httpserver.HandlerFunc(listHandler.Home))
	server.Register(httpserver.Route{Name: "ListDetail", Method: "GET", Path: "/list/{list_id}", AuthType: "none"},
		httpserver.HandlerFunc(listHandler.ListDetail))
	server.Register(httpserver.Route{Name: "AddList", Method: "POST", Path: "/add_list", AuthType: "none"},
		httpserver.HandlerFunc(listHandler.AddList))
	server.Register(httpserver.Route{Name: "DeleteList", Method: "POST", Path: "/delete_list/{list_id}", AuthType: "none"},
		httpserver.HandlerFunc(listHandler.DeleteList))

	// Tasks
	server.Register(httpserver.Route{Name: "AddTask", Method: "POST", Path: "/list/{list_id}/add_task", AuthType: "none"},
		httpserver.HandlerFunc(taskHandler.AddTask))
	server.Register(httpserver.Route{Name: "ToggleTask", Method: "POST", Path: "/update_task/{task_id}", AuthType: "none"},
		httpserver.HandlerFunc(taskHandler.ToggleTask))
	server.Register(httpserver.Route{Name: "EditTaskForm", Method: "GET", Path: "/edit/{id}", AuthType: "none"},
		httpserver.HandlerFunc(taskHandler.EditTaskForm))
	server.Register(httpserver.Route{Name: "EditTask", Method: "POST", Path: "/edit/{id}", AuthType: "none"},
		httpserver.HandlerFunc(taskHandler.EditTask))
	server.Register(httpserver.Route{Name: "DeleteTask", Method: "POST", Path: "/delete_task/{task_id}", AuthType: "none"},
		httpserver.HandlerFunc(taskHandler.DeleteTask))

	// Tags
	server.Register(httpserver.Route{Name: "AddTag", Method: "POST", Path: "/add_tag/{task_id}", AuthType: "none"},
		httpserver.HandlerFunc(tagHandler.AddTag))

	logger.Info("Todo Service started on port " + port)

	if err := server.Start(); err != nil {
		logger.Error("Server failed to start", zap.Error(err))
		os.Exit(1)
	}
}
