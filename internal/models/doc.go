// Package models defines the core domain models for the project cost estimator.
//
// # Records
//
// A project budget is made of two collections of records owned by one user:
//   - Items: line items of the project (materials, labour, equipment)
//   - Costs: miscellaneous other costs (permits, transport, fees)
//
// Both collections share the Record type. Which collection a record belongs to
// is carried by the Collection value next to it, never by a field on the record.
//
// # Identity
//
// Identity is the signed-in user as seen by the client. User is the server-side
// account row backing it.
//
// # Design Principles
//
//  1. Amounts are decimals with two-place precision, never floats
//  2. Records are explicit typed structs; unknown fields are rejected at the wire boundary
//  3. Validation lives next to the type it validates (Draft.Validate, Patch.Validate)
package models
