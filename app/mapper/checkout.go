package mapper

import (
	"github.com/velorum-store/ms-go-checkout/app/service"
	"github.com/velorum-store/ms-go-checkout/app/types"
)

func CheckoutResultToResponse(result *service.CheckoutResult) *types.CheckoutPreferenceResponse {
	if result == nil {
		return nil
	}

	return &types.CheckoutPreferenceResponse{
		PreferenceID:     result.Preference.ID,
		InitPoint:        result.Preference.InitPoint,
		SandboxInitPoint: result.Preference.SandboxInitPoint,
		Token:            result.Token.Token,
	}
}

func AccessResultToResponse(result *service.AccessResult) *types.ValidateCheckoutResponse {
	if result == nil {
		return nil
	}

	return &types.ValidateCheckoutResponse{
		Valid:         true,
		OrderID:       result.Token.OrderID,
		UsageCount:    result.Token.UsageCount,
		FingerprintOK: result.FingerprintOK,
	}
}
