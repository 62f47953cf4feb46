package router_test

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/erraggy/oasrouter/contract"
	"github.com/erraggy/oasrouter/router"
)

const greetContract = `
openapi: 3.0.3
info:
  title: Greeter
  version: "1.0"
paths:
  /greet/{name}:
    get:
      operationId: greet
      parameters:
        - name: name
          in: path
          required: true
          schema:
            type: string
            maxLength: 8
      responses:
        "200":
          description: greeting
`

func greet(_ context.Context, req *router.Request, _ *router.SecurityContext) (router.Response, error) {
	return router.Text(http.StatusOK, "hello "+req.PathParams["name"].(string)), nil
}

func ExampleRouter() {
	c, err := contract.Load(context.Background(), contract.WithBytes([]byte(greetContract)))
	if err != nil {
		log.Fatal(err)
	}
	r, err := router.New(c)
	if err != nil {
		log.Fatal(err)
	}
	if err := r.Register("greet", greet); err != nil {
		log.Fatal(err)
	}

	for _, path := range []string{"/greet/gopher", "/greet/somebodyelse", "/farewell"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		fmt.Println(rec.Code, strings.TrimSpace(rec.Body.String()))
	}
	// Output:
	// 200 hello gopher
	// 400 {"message":"Bad Request"}
	// 404 {"message":"Not Found"}
}

func ExampleRouteTable_Mount() {
	c, err := contract.Load(context.Background(), contract.WithBytes([]byte(greetContract)))
	if err != nil {
		log.Fatal(err)
	}
	r, err := router.New(c)
	if err != nil {
		log.Fatal(err)
	}
	_ = r.Register("greet", greet)

	table, err := r.Routes(context.Background())
	if err != nil {
		log.Fatal(err)
	}

	mux := chi.NewRouter()
	mux.Route("/v1", func(api chi.Router) {
		table.Mount(api)
	})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/greet/chi", nil))
	fmt.Println(rec.Code, rec.Body.String())
	// Output:
	// 200 hello chi
}
