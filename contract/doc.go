// Package contract loads an OpenAPI 3.x document and exposes the view of it
// that the router compiles: path templates, operations with their parameters,
// request bodies, responses and effective security requirements, and the
// component schemas.
//
// # Loading
//
// A contract is loaded once, from a file, from bytes or from a document that
// was already parsed with github.com/erraggy/oastools/parser:
//
//	c, err := contract.Load(ctx, contract.WithFilePath("openapi.yaml"))
//	if err != nil {
//	    log.Fatal(err) // *oaserrors.ContractError
//	}
//
// Only OAS 3.x documents are accepted. A Contract is immutable after Load and
// safe for concurrent reads.
//
// # Operations
//
// [Contract.Operations] flattens every (template, method) pair into an
// [Operation]. Path-level parameters are merged into each operation
// (operation-level wins on the same name and location) and component
// references for parameters, request bodies and responses are resolved.
// Schema references ("#/components/schemas/Pet") are left in place; the
// schema package resolves those through its registry.
//
// # Security
//
// [Operation.Security] is the effective requirement list: the operation's own
// list when declared (an explicit empty list disables security) and the
// document's global list otherwise.
package contract
