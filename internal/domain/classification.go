package domain

// ClassificationKind discriminates the outcome of a classification cycle.
type ClassificationKind string

const (
	KindPersona      ClassificationKind = "PERSONA"
	KindExclusion    ClassificationKind = "EXCLUSION"
	KindUnclassified ClassificationKind = "UNCLASSIFIED"
)

// Persona represents a followable behavioral classification.
type Persona string

const (
	PersonaInformedSpecialist  Persona = "INFORMED_SPECIALIST"
	PersonaConsistentGeneralist Persona = "CONSISTENT_GENERALIST"
	PersonaPatientAccumulator  Persona = "PATIENT_ACCUMULATOR"
)

// FollowMode describes how a followable wallet's trades are mirrored.
type FollowMode string

const (
	FollowImmediateDelayed FollowMode = "IMMEDIATE_DELAYED"
	FollowImmediate        FollowMode = "IMMEDIATE"
	FollowSlowDelayed      FollowMode = "SLOW_DELAYED"
)

// FollowModeFor returns the follow mode associated with a persona.
func FollowModeFor(p Persona) FollowMode {
	switch p {
	case PersonaInformedSpecialist:
		return FollowImmediateDelayed
	case PersonaConsistentGeneralist:
		return FollowImmediate
	case PersonaPatientAccumulator:
		return FollowSlowDelayed
	default:
		return ""
	}
}

// ExclusionCode identifies which detector ruled a wallet out.
type ExclusionCode string

const (
	ExclStage1TooYoung            ExclusionCode = "STAGE1_TOO_YOUNG"
	ExclStage1TooFewTrades        ExclusionCode = "STAGE1_TOO_FEW_TRADES"
	ExclStage1Inactive            ExclusionCode = "STAGE1_INACTIVE"
	ExclStage1NegativeLifetimeROI ExclusionCode = "STAGE1_NEGATIVE_LIFETIME_ROI"
	ExclSniperInsider             ExclusionCode = "SNIPER_INSIDER"
	ExclNoiseTrader               ExclusionCode = "NOISE_TRADER"
	ExclTailRiskSeller            ExclusionCode = "TAIL_RISK_SELLER"
	ExclNewsSniper                ExclusionCode = "NEWS_SNIPER"
	ExclLiquidityProvider         ExclusionCode = "LIQUIDITY_PROVIDER"
	ExclJackpotGambler            ExclusionCode = "JACKPOT_GAMBLER"
	ExclBotSwarmMicro             ExclusionCode = "BOT_SWARM_MICRO"
	ExclExecutionMaster           ExclusionCode = "EXECUTION_MASTER"
)

// Classification represents the single current verdict for a wallet.
// Overwritten on every evaluation cycle; a wallet can flip between
// followable and excluded across cycles.
// Corresponds to wallet_classifications table in PostgreSQL.
type Classification struct {
	Wallet       string             // wallet address, unique key
	CycleID      string             // evaluation cycle identifier
	Kind         ClassificationKind // PERSONA | EXCLUSION | UNCLASSIFIED
	Persona      Persona            // set when Kind == PERSONA
	FollowMode   FollowMode         // derived from Persona
	Exclusion    ExclusionCode      // set when Kind == EXCLUSION
	Metric       float64            // measured value of the deciding detector
	Threshold    float64            // threshold the metric was compared against
	ClassifiedAt int64              // Unix timestamp in seconds
}

// Followable reports whether the wallet's current verdict allows mirroring.
func (c *Classification) Followable() bool {
	return c.Kind == KindPersona
}
