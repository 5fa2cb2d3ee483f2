package llc

import "strings"

// requiredFields lists the record fields that must be non-blank on submission.
func requiredFields(req SubmitRequest) []string {
	return []string{
		req.Category,
		req.ProblemShort,
		req.ProblemDetail,
		req.LlcType,
		req.Customer,
		req.ProductFamily,
		req.ProductType,
		req.QualityDetection,
		req.ApplicationLabel,
		req.ProductLineLabel,
		req.PartOrMachineNumber,
		req.Editor,
		req.FailureMode,
		req.Conclusions,
	}
}

// ValidateSubmitInput validates fields required to submit a record.
func ValidateSubmitInput(req SubmitRequest) error {
	for _, f := range requiredFields(req) {
		if strings.TrimSpace(f) == "" {
			return ErrInvalidInput
		}
	}
	if len(req.RootCauses) == 0 {
		return ErrInvalidInput
	}
	for _, rc := range req.RootCauses {
		if err := validateRootCause(rc); err != nil {
			return err
		}
	}
	return nil
}

func validateRootCause(rc RootCauseInput) error {
	for _, f := range []string{
		rc.RootCause,
		rc.DetailedCauseDescription,
		rc.SolutionDescription,
		rc.Conclusion,
		rc.Process,
		rc.Origin,
	} {
		if strings.TrimSpace(f) == "" {
			return ErrInvalidInput
		}
	}
	return nil
}

// ValidateReason enforces the minimum rejection reason length.
func ValidateReason(reason string) error {
	if len(strings.TrimSpace(reason)) < 3 {
		return ErrMissingReason
	}
	return nil
}
