package solver

// Fields exchanged between the flow and infiltration models.
const (
	DepthField       = "surface_water__depth"
	InfiltratedField = "surface_water__infiltrated_depth"
	RoughnessField   = "mannings_n"
	RateField        = "infiltration__rate"
	SoilDepthField   = "soil_water_infiltration__depth"
)

// Process names, used as field owners.
const (
	FlowName         = "overland_flow"
	InfiltrationName = "soil_infiltration"
)
