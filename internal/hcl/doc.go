// Package hcl provides the HCL implementation of config.Loader. It parses a
// project file with hclparse, decodes it with gohcl against a cty
// evaluation context, and translates the result into config.Model.
package hcl
