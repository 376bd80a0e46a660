package router

import (
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"opsboard/commerce"
	"opsboard/handler"
	"opsboard/middleware"
	"opsboard/socket"
	"opsboard/store"
)

// Setup wires the whole HTTP surface: the WebSocket endpoint, the generic
// collection API, the shop endpoints and the static dashboard assets.
func Setup(st *store.Store, hub *socket.Hub, rec *commerce.Reconciler, publicDir string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.CORSMiddleware)

	r.Get("/ws", func(w http.ResponseWriter, req *http.Request) {
		socket.ServeWs(hub, w, req)
	})

	col := handler.NewCollectionHandler(st, hub)
	shop := handler.NewShopHandler(rec)

	r.Route("/api", func(api chi.Router) {
		api.Get("/data", col.FullData)
		api.Get("/ai/insights", col.Insights)

		api.Get("/shop/orders", shop.Orders)
		api.Get("/shop/stats", shop.Stats)
		api.Get("/shop/products", shop.Products)

		api.Get("/settings", col.GetSettings)
		api.Put("/settings", col.UpdateSettings)

		api.Get("/{collection}", col.List)
		api.Post("/{collection}", col.Create)
		api.Put("/{collection}", col.BulkReplace)
		api.Get("/{collection}/{id}", col.GetOne)
		api.Put("/{collection}/{id}", col.Update)
		api.Delete("/{collection}/{id}", col.Delete)
	})

	if info, err := os.Stat(publicDir); err == nil && info.IsDir() {
		r.Handle("/*", http.FileServer(http.Dir(publicDir)))
	}

	return r
}
