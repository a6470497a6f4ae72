// Package codegen assembles a parsed fragment, its flattened includes and
// the host's slot bindings into one deterministic block of shader source.
//
// The layout of a generated unit is fixed:
//
//	// begin include "Utils.ush"
//	...include text...
//	// end include "Utils.ush"
//	// begin fragment "tint"
//	{
//		float3 Color = MyColorVar;
//		float3 Result;
//	...fragment body...
//		MyResultVar = Result;
//	}
//	// end fragment "tint"
//
// Identical inputs always produce byte-identical output.
package codegen
