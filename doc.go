// Package oasrouter serves HTTP APIs from their OpenAPI 3.x contract.
//
// The contract is the single source of truth: it is compiled into a chi route
// table whose handlers validate every request (parameters, body, security)
// before business code runs, and optionally validate responses on the way
// out.
//
// # Packages
//
//   - contract: load an OpenAPI 3.x document and flatten its operations
//   - schema: compile JSON schemas into validators, coerce parameters
//   - router: build route tables and run the request pipeline
//   - security: ready-made API key, bearer JWT and Basic scheme handlers
//   - logging: the Logger interface with slog and zap adapters
//   - oaserrors: structured error types for errors.Is / errors.As
//
// # Quick Start
//
//	c, err := contract.Load(ctx, contract.WithFilePath("openapi.yaml"))
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	r, err := router.New(c, router.WithStrictMode(true))
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	_ = r.Register("getPet", func(ctx context.Context, req *router.Request, sec *router.SecurityContext) (router.Response, error) {
//		return router.JSON(http.StatusOK, pets[req.PathParams["petId"].(int64)]), nil
//	})
//	_ = r.RegisterSecurity("bearer", security.BearerJWT(security.HMACKey(secret)))
//
//	table, err := r.Routes(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//	log.Fatal(http.ListenAndServe(":8080", table.Handler()))
//
// # Command Line
//
// The oasrouter command serves a contract directly (every operation answers
// 501 until handlers exist, or echoes the validated request with --echo)
// and lists the route table a contract compiles to:
//
//	oasrouter routes --spec openapi.yaml
//	oasrouter serve --spec openapi.yaml --listen :8080 --strict --development
package oasrouter
