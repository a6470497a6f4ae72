package fragment

import (
	"fmt"
	"regexp"
	"strings"
)

// TypeClass groups semantic types by how they can be used on a pin.
type TypeClass uint8

const (
	ClassScalar TypeClass = iota + 1
	ClassVector
	ClassMatrix
	ClassTexture
	ClassSampler
)

func (t TypeClass) String() string {
	switch t {
	case ClassScalar:
		return "scalar"
	case ClassVector:
		return "vector"
	case ClassMatrix:
		return "matrix"
	case ClassTexture:
		return "texture"
	case ClassSampler:
		return "sampler"
	default:
		return fmt.Sprintf("TypeClass(%d)", uint8(t))
	}
}

// TypeInfo describes a semantic type a fragment may declare.
type TypeInfo struct {
	// Name is the canonical spelling, e.g. "float3" for both float3 and vec3.
	Name  string
	Class TypeClass
	// Scalar is the component type: "float", "half", "int", "uint" or "bool".
	Scalar string
	// Components is the vector width (1 for scalars) or the matrix row count.
	Components int
}

// IsValue reports whether the type can flow through an output pin.
func (t TypeInfo) IsValue() bool {
	return t.Class == ClassScalar || t.Class == ClassVector
}

var typeTable = map[string]TypeInfo{}

// aliases maps alternative spellings onto canonical names.
var aliases = map[string]string{
	"vec2": "float2", "vec3": "float3", "vec4": "float4",
	"ivec2": "int2", "ivec3": "int3", "ivec4": "int4",
	"uvec2": "uint2", "uvec3": "uint3", "uvec4": "uint4",
	"bvec2": "bool2", "bvec3": "bool3", "bvec4": "bool4",
	"mat2": "float2x2", "mat3": "float3x3", "mat4": "float4x4",
	"float1": "float", "int1": "int", "uint1": "uint", "half1": "half",
}

func init() {
	for _, scalar := range []string{"float", "half", "int", "uint", "bool"} {
		typeTable[scalar] = TypeInfo{Name: scalar, Class: ClassScalar, Scalar: scalar, Components: 1}
		for n := 2; n <= 4; n++ {
			name := fmt.Sprintf("%s%d", scalar, n)
			typeTable[name] = TypeInfo{Name: name, Class: ClassVector, Scalar: scalar, Components: n}
		}
	}
	for n := 2; n <= 4; n++ {
		name := fmt.Sprintf("float%dx%d", n, n)
		typeTable[name] = TypeInfo{Name: name, Class: ClassMatrix, Scalar: "float", Components: n}
	}
	for _, tex := range []string{"Texture2D", "Texture2DArray", "TextureCube", "Texture3D", "TextureExternal"} {
		typeTable[tex] = TypeInfo{Name: tex, Class: ClassTexture}
	}
	typeTable["SamplerState"] = TypeInfo{Name: "SamplerState", Class: ClassSampler}
}

// LookupType resolves a declared type name, following aliases.
func LookupType(name string) (TypeInfo, bool) {
	if canonical, ok := aliases[name]; ok {
		name = canonical
	}
	info, ok := typeTable[name]
	return info, ok
}

// SameType reports whether two spellings name the same semantic type.
func SameType(a, b string) bool {
	ta, okA := LookupType(a)
	tb, okB := LookupType(b)
	if !okA || !okB {
		return a == b
	}
	return ta.Name == tb.Name
}

const numberPattern = `\s*[+-]?\s*(?:[0-9]+\.?[0-9]*|\.[0-9]+)(?:[eE][+-]?[0-9]+)?[fFhHuU]?\s*`

var (
	numberRegex      = regexp.MustCompile(`^` + numberPattern + `$`)
	constructorRegex = regexp.MustCompile(`^\s*([A-Za-z_][A-Za-z0-9_]*)\s*\((.*)\)\s*$`)
)

// ValidateDefault checks that expr is an acceptable default value for t.
// Defaults are restricted to literals so the host graph can show them as
// pin previews.
func ValidateDefault(t TypeInfo, expr string) error {
	switch t.Class {
	case ClassMatrix, ClassTexture, ClassSampler:
		return fmt.Errorf("type %s cannot have a default value", t.Name)
	}

	if t.Scalar == "bool" {
		if t.Class == ClassScalar && (expr == "true" || expr == "false") {
			return nil
		}
		if t.Class == ClassScalar {
			return fmt.Errorf("invalid default value for type %s: %s", t.Name, expr)
		}
	}

	if numberRegex.MatchString(expr) {
		return nil
	}
	if t.Class == ClassScalar {
		return fmt.Errorf("invalid default value for type %s: %s", t.Name, expr)
	}

	m := constructorRegex.FindStringSubmatch(expr)
	if m == nil || !SameType(m[1], t.Name) {
		return fmt.Errorf("invalid default value for type %s: %s", t.Name, expr)
	}
	args := strings.Split(m[2], ",")
	if len(args) != t.Components {
		return fmt.Errorf("default value for type %s needs %d components, got %d", t.Name, t.Components, len(args))
	}
	for _, arg := range args {
		if !numberRegex.MatchString(arg) && !(t.Scalar == "bool" && isBoolLiteral(arg)) {
			return fmt.Errorf("invalid default value for type %s: %s", t.Name, expr)
		}
	}
	return nil
}

func isBoolLiteral(s string) bool {
	s = strings.TrimSpace(s)
	return s == "true" || s == "false"
}
