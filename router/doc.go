// Package router turns a loaded OpenAPI contract into a chi route table whose
// handlers run every request through a contract-enforcing pipeline.
//
// # Quick Start
//
//	c, err := contract.Load(ctx, contract.WithFilePath("openapi.yaml"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	r, err := router.New(c, router.WithStrictMode(true))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	_ = r.Register("getItem", func(ctx context.Context, req *router.Request, sec *router.SecurityContext) (router.Response, error) {
//	    return router.JSON(http.StatusOK, map[string]any{"id": req.PathParams["id"]}), nil
//	})
//	_ = r.RegisterSecurity("apiKey", func(ctx context.Context, req *router.Request, scopes []string, sec *router.SecurityContext) (router.SecurityResult, error) {
//	    if req.Header.Get("X-API-Key") == "secret" {
//	        return router.Accept(), nil
//	    }
//	    return router.Reject(), nil
//	})
//	table, err := r.Routes(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	http.ListenAndServe(":8080", table.Handler())
//
// # Pipeline
//
// Each request passes these stages in order; the first failure ends it:
//
//  1. Extraction of path, query, cookie and header data
//  2. Query parameter coercion and validation (400 ERR_VALIDATION)
//  3. Path parameter coercion and validation (400 ERR_VALIDATION)
//  4. Body parsing and validation (400 INVALID_BODY_VALIDATION, 413, 415)
//  5. Security evaluation (401, 403, or 500 ERR_CONFIG for a missing handler)
//  6. Dispatch to the registered handler (501 when none, 500 HANDLER_ERROR)
//  7. Response validation, in strict mode only
//  8. CORS and X-Request-ID headers, then the response is written
//
// # Routes
//
// [Router.Routes] compiles the contract into a [RouteTable]. Path templates
// are translated into chi patterns; templates that differ only by parameter
// names conflict and the first one in sorted order wins. Every kept path gets
// a synthetic OPTIONS handler answering CORS preflights unless the contract
// declares OPTIONS itself. Operations without an operationId are skipped.
//
// Handlers registered after Routes are still found: registries are consulted
// per request.
//
// # Errors
//
// Pipeline failures are rendered as JSON. In development mode the body is the
// full [ErrorInfo] (code, message, details); otherwise only a fixed message
// per status is sent. A formatter registered with
// [Router.RegisterErrorHandler] can replace the body.
package router
