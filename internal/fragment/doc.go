// Package fragment parses raw shader fragments.
//
// A fragment is plain shader text with a small declaration header:
//
//	input float3 Color = float3(1, 1, 1);
//	output float3 Result;
//	#include "Utils.ush"
//
//	Result = Color * Brightness(Color);
//
// Parse extracts the declarations, include directives and #define lines in a
// single forward pass and returns the remaining text as the body. It performs
// no I/O; include directives are left unresolved.
package fragment
