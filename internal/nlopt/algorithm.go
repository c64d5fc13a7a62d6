package nlopt

// #include <nlopt.h>
import "C"

import (
	"fmt"
	"sort"
	"strings"
)

// Algorithm selects one of NLopt's algorithms. It is passed through to
// nlopt_create unchanged; the binding gives it no meaning of its own.
//
// The prefix follows NLopt's naming: G/L for global or local search, N/D for
// derivative-free or gradient-based.
type Algorithm int

const (
	GNDirect                Algorithm = C.NLOPT_GN_DIRECT
	GNDirectL               Algorithm = C.NLOPT_GN_DIRECT_L
	GNDirectLRand           Algorithm = C.NLOPT_GN_DIRECT_L_RAND
	GNDirectNoScal          Algorithm = C.NLOPT_GN_DIRECT_NOSCAL
	GNDirectLNoScal         Algorithm = C.NLOPT_GN_DIRECT_L_NOSCAL
	GNDirectLRandNoScal     Algorithm = C.NLOPT_GN_DIRECT_L_RAND_NOSCAL
	GNOrigDirect            Algorithm = C.NLOPT_GN_ORIG_DIRECT
	GNOrigDirectL           Algorithm = C.NLOPT_GN_ORIG_DIRECT_L
	GDStogo                 Algorithm = C.NLOPT_GD_STOGO
	GDStogoRand             Algorithm = C.NLOPT_GD_STOGO_RAND
	LDLBFGS                 Algorithm = C.NLOPT_LD_LBFGS
	LNPraxis                Algorithm = C.NLOPT_LN_PRAXIS
	LDVar1                  Algorithm = C.NLOPT_LD_VAR1
	LDVar2                  Algorithm = C.NLOPT_LD_VAR2
	LDTNewton               Algorithm = C.NLOPT_LD_TNEWTON
	LDTNewtonRestart        Algorithm = C.NLOPT_LD_TNEWTON_RESTART
	LDTNewtonPrecond        Algorithm = C.NLOPT_LD_TNEWTON_PRECOND
	LDTNewtonPrecondRestart Algorithm = C.NLOPT_LD_TNEWTON_PRECOND_RESTART
	GNCRS2LM                Algorithm = C.NLOPT_GN_CRS2_LM
	GNMLSL                  Algorithm = C.NLOPT_GN_MLSL
	GDMLSL                  Algorithm = C.NLOPT_GD_MLSL
	GNMLSLLDS               Algorithm = C.NLOPT_GN_MLSL_LDS
	GDMLSLLDS               Algorithm = C.NLOPT_GD_MLSL_LDS
	LDMMA                   Algorithm = C.NLOPT_LD_MMA
	LNCOBYLA                Algorithm = C.NLOPT_LN_COBYLA
	LNNEWUOA                Algorithm = C.NLOPT_LN_NEWUOA
	LNNEWUOABound           Algorithm = C.NLOPT_LN_NEWUOA_BOUND
	LNNelderMead            Algorithm = C.NLOPT_LN_NELDERMEAD
	LNSbplx                 Algorithm = C.NLOPT_LN_SBPLX
	LNAUGLAG                Algorithm = C.NLOPT_LN_AUGLAG
	LDAUGLAG                Algorithm = C.NLOPT_LD_AUGLAG
	LNAUGLAGEq              Algorithm = C.NLOPT_LN_AUGLAG_EQ
	LDAUGLAGEq              Algorithm = C.NLOPT_LD_AUGLAG_EQ
	LNBOBYQA                Algorithm = C.NLOPT_LN_BOBYQA
	GNISRES                 Algorithm = C.NLOPT_GN_ISRES
	AUGLAG                  Algorithm = C.NLOPT_AUGLAG
	AUGLAGEq                Algorithm = C.NLOPT_AUGLAG_EQ
	GMLSL                   Algorithm = C.NLOPT_G_MLSL
	GMLSLLDS                Algorithm = C.NLOPT_G_MLSL_LDS
	LDSLSQP                 Algorithm = C.NLOPT_LD_SLSQP
	LDCCSAQ                 Algorithm = C.NLOPT_LD_CCSAQ
	GNESCH                  Algorithm = C.NLOPT_GN_ESCH

	numAlgorithms = int(C.NLOPT_NUM_ALGORITHMS)
)

// algorithmKeys are the identifiers used in config files and on the command
// line; they are NLopt's enum names without the NLOPT_ prefix.
var algorithmKeys = map[string]Algorithm{
	"GN_DIRECT":                  GNDirect,
	"GN_DIRECT_L":                GNDirectL,
	"GN_DIRECT_L_RAND":           GNDirectLRand,
	"GN_DIRECT_NOSCAL":           GNDirectNoScal,
	"GN_DIRECT_L_NOSCAL":         GNDirectLNoScal,
	"GN_DIRECT_L_RAND_NOSCAL":    GNDirectLRandNoScal,
	"GN_ORIG_DIRECT":             GNOrigDirect,
	"GN_ORIG_DIRECT_L":           GNOrigDirectL,
	"GD_STOGO":                   GDStogo,
	"GD_STOGO_RAND":              GDStogoRand,
	"LD_LBFGS":                   LDLBFGS,
	"LN_PRAXIS":                  LNPraxis,
	"LD_VAR1":                    LDVar1,
	"LD_VAR2":                    LDVar2,
	"LD_TNEWTON":                 LDTNewton,
	"LD_TNEWTON_RESTART":         LDTNewtonRestart,
	"LD_TNEWTON_PRECOND":         LDTNewtonPrecond,
	"LD_TNEWTON_PRECOND_RESTART": LDTNewtonPrecondRestart,
	"GN_CRS2_LM":                 GNCRS2LM,
	"GN_MLSL":                    GNMLSL,
	"GD_MLSL":                    GDMLSL,
	"GN_MLSL_LDS":                GNMLSLLDS,
	"GD_MLSL_LDS":                GDMLSLLDS,
	"LD_MMA":                     LDMMA,
	"LN_COBYLA":                  LNCOBYLA,
	"LN_NEWUOA":                  LNNEWUOA,
	"LN_NEWUOA_BOUND":            LNNEWUOABound,
	"LN_NELDERMEAD":              LNNelderMead,
	"LN_SBPLX":                   LNSbplx,
	"LN_AUGLAG":                  LNAUGLAG,
	"LD_AUGLAG":                  LDAUGLAG,
	"LN_AUGLAG_EQ":               LNAUGLAGEq,
	"LD_AUGLAG_EQ":               LDAUGLAGEq,
	"LN_BOBYQA":                  LNBOBYQA,
	"GN_ISRES":                   GNISRES,
	"AUGLAG":                     AUGLAG,
	"AUGLAG_EQ":                  AUGLAGEq,
	"G_MLSL":                     GMLSL,
	"G_MLSL_LDS":                 GMLSLLDS,
	"LD_SLSQP":                   LDSLSQP,
	"LD_CCSAQ":                   LDCCSAQ,
	"GN_ESCH":                    GNESCH,
}

// ParseAlgorithm resolves an identifier such as "LD_MMA" or "ln_cobyla".
func ParseAlgorithm(name string) (Algorithm, error) {
	key := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(name)), "NLOPT_")
	if alg, ok := algorithmKeys[key]; ok {
		return alg, nil
	}
	return 0, fmt.Errorf("unknown algorithm %q: %w", name, ErrInvalidArgs)
}

// AlgorithmKeys lists every identifier ParseAlgorithm accepts, sorted.
func AlgorithmKeys() []string {
	keys := make([]string, 0, len(algorithmKeys))
	for k := range algorithmKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Key returns the identifier ParseAlgorithm accepts for a, or "" if a has none.
func (a Algorithm) Key() string {
	for k, v := range algorithmKeys {
		if v == a {
			return k
		}
	}
	return ""
}

// String returns NLopt's human-readable description of the algorithm.
func (a Algorithm) String() string {
	if !a.valid() {
		return fmt.Sprintf("Algorithm(%d)", int(a))
	}
	return cAlgorithmName(a)
}

// NeedsGradient reports whether the algorithm evaluates gradients.
func (a Algorithm) NeedsGradient() bool {
	key := a.Key()
	return strings.HasPrefix(key, "LD_") || strings.HasPrefix(key, "GD_")
}

func (a Algorithm) valid() bool {
	return int(a) >= 0 && int(a) < numAlgorithms
}
