package main

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cexcore/exchange/internal/api"
	"github.com/cexcore/exchange/internal/auth"
	"github.com/cexcore/exchange/internal/config"
	"github.com/cexcore/exchange/internal/db"
	"github.com/cexcore/exchange/internal/events"
	"github.com/cexcore/exchange/internal/exchange"
	"github.com/cexcore/exchange/internal/logger"
	"github.com/cexcore/exchange/internal/payment"
	"github.com/cexcore/exchange/internal/pricing"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // allow all origins in development
	},
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// wsFeed pushes transaction signals to connected websocket clients
type wsFeed struct {
	logger  *zap.Logger
	mu      sync.RWMutex
	clients map[*wsClient]bool
}

func newWSFeed(log *zap.Logger) *wsFeed {
	return &wsFeed{logger: log, clients: make(map[*wsClient]bool)}
}

// Register subscribes the feed to transaction signals on the bus
func (f *wsFeed) Register(bus *events.Bus) {
	bus.Subscribe(events.TopicTransactionCreated, func(event events.Event) {
		data, err := json.Marshal(map[string]any{
			"topic":   event.Topic,
			"payload": event.Payload,
		})
		if err != nil {
			f.logger.Error("failed to marshal event", zap.Error(err))
			return
		}
		f.broadcast(data)
	})
}

func (f *wsFeed) broadcast(data []byte) {
	f.mu.RLock()
	clients := make([]*wsClient, 0, len(f.clients))
	for client := range f.clients {
		clients = append(clients, client)
	}
	f.mu.RUnlock()

	for _, client := range clients {
		client.mu.Lock()
		err := client.conn.WriteMessage(websocket.TextMessage, data)
		client.mu.Unlock()
		if err != nil {
			f.logger.Debug("dropping websocket client", zap.Error(err))
			f.mu.Lock()
			delete(f.clients, client)
			f.mu.Unlock()
		}
	}
}

func (f *wsFeed) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}

	client := &wsClient{conn: conn}
	f.mu.Lock()
	f.clients[client] = true
	f.mu.Unlock()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			f.mu.Lock()
			delete(f.clients, client)
			f.mu.Unlock()
			break
		}
	}
}

// Main entry point: wires config, stores, event bus, core services and the
// HTTP server.
func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	database, err := db.New(ctx, cfg.DBConn)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		log.Fatal("failed to migrate database", zap.Error(err))
	}

	bus := events.NewBus(log)
	oracle := pricing.NewStaticOracle()
	gateway := payment.NewSimGateway(log)

	orderService := exchange.NewOrderService(log, database.Orders(), database.Wallets(), bus)
	walletService := exchange.NewWalletService(log, database.Wallets(), gateway, bus)
	transactionService := exchange.NewTransactionService(log, database.Transactions())
	matchingEngine := exchange.NewMatchingEngine(log, database.Orders(), database.Wallets(), oracle, bus)

	transactionService.Register(bus)
	matchingEngine.Register(bus)

	feed := newWSFeed(log)
	feed.Register(bus)

	authService := auth.NewService(database.Users(), []byte(cfg.JWTSecret))
	handler := api.NewHandler(log, orderService, walletService, transactionService, authService)

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ws", feed.handle)
	handler.Routes(r)

	log.Info("starting server", zap.String("addr", cfg.HTTPAddr))
	if err := http.ListenAndServe(cfg.HTTPAddr, r); err != nil {
		log.Fatal("server failed", zap.Error(err))
	}
}
