// Package config defines the format-agnostic project model: compiler
// settings plus the fragments to build and their slot bindings.
//
// Concrete loaders, such as the HCL one, live in separate packages and
// translate their own schema into Model.
package config
