package observability

// SelectSampler exposes selectSampler to the external tests.
var SelectSampler = selectSampler
