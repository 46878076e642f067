package billingconfig

import "go.uber.org/fx"

// Module exposes the billing secret resolver via Fx.
var Module = fx.Options(
	fx.Provide(NewResolver),
)
