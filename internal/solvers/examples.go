package solvers

// Built-in example inputs, offered by every manager in addition to the
// examples file.

// VehicleModel is a small feature model: a vehicle has an engine, which is
// either electric or combustion, and electric is required. Combustion is
// therefore dead.
const VehicleModel = `c 1 Vehicle
c 2 Engine
c 3 Electric
c 4 Combustion
p cnf 4 7
1 0
-1 2 0
-2 1 0
-3 2 0
-4 2 0
-3 -4 0
3 0
`

// ContradictionModel is void: its only variable must be both true and false.
const ContradictionModel = `c 1 Feature
p cnf 1 2
1 0
-1 0
`

const simpleCNF = `p cnf 3 2
1 -3 0
2 3 -1 0
`

func satExamples() []string {
	return []string{simpleCNF, VehicleModel, ContradictionModel}
}

func anomalyExamples() []AnomalyInput {
	return []AnomalyInput{
		{Formula: VehicleModel, Anomaly: AnomalyDead},
		{Formula: VehicleModel, Anomaly: AnomalyVoid},
		{Formula: ContradictionModel, Anomaly: AnomalyVoid},
	}
}

func reportExamples() []string {
	return []string{VehicleModel}
}
