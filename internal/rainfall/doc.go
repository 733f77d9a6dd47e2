// Package rainfall produces rain rate over simulation time.
//
// A Signal gives the rate at any time. SmoothedStep approximates a
// rectangular storm with logistic edges so adaptive timestep selection in
// the flow model never sees a discontinuity; Tabulated interpolates a
// recorded series. Driver samples a signal into the rain_rate domain field.
package rainfall
