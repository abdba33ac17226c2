package cmp

// quantcastCommon raises the dialog's z-index so debugging overlays stay
// visible on top of Quantcast's cleanslate styling. Best-effort.
func quantcastCommon(ctx Context) {
	go func() {
		_, err := ctx.Page.Locator(".qc-cmp-cleanslate").
			Evaluate(`node => node.style.zIndex = "2147483646"`, nil)
		if err == nil {
			ctx.Log.Info().Msg("Found a Quantcast dialog!")
		}
	}()
}

func QuantcastAccept(ctx Context) error {
	quantcastCommon(ctx)

	if err := ctx.Page.Locator(".qc-cmp2-footer button[mode=primary]").Click(); err != nil {
		return err
	}
	ctx.Log.Info().Msg("Quantcast dialog accepted.")
	return nil
}

func QuantcastReject(ctx Context) error {
	quantcastCommon(ctx)

	// more options
	if err := ctx.Page.Locator(".qc-cmp2-footer button[mode=secondary]:visible").Last().Click(); err != nil {
		return err
	}

	// legitimate interest
	if err := ctx.Page.Locator(".qc-cmp2-footer button[mode=link]:visible").Last().Click(); err != nil {
		return err
	}

	// object all
	if err := ctx.Page.Locator(`
		.qc-cmp2-footer button[mode=secondary]:visible,
		.qc-cmp2-header-links button[mode=link]:first-child:visible
	`).First().Click(); err != nil {
		return err
	}

	// save all
	if err := ctx.Page.Locator(".qc-cmp2-footer button[mode=primary]:visible").Click(); err != nil {
		return err
	}
	ctx.Log.Info().Msg("Quantcast dialog rejected.")
	return nil
}
