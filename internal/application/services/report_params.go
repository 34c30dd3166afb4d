package services

import (
	"strconv"
	"strings"

	"github.com/screenlab/reports/pkg/constants"
	"github.com/screenlab/reports/pkg/errors"
)

// requestOptions are the reserved parameters extracted from a report
// request; everything else in the parameter map is filter input.
type requestOptions struct {
	limit        int
	offset       int
	orderBy      []string
	includes     []string
	excludes     []string
	exactFields  []string
	visibilities []string
	format       string
	useTitles    bool
	rawLists     bool
}

// parseRequestOptions extracts and validates the reserved parameters.
// The default page size applies only to JSON list responses; export
// formats default to unbounded.
func parseRequestOptions(params map[string][]string, accept string) (*requestOptions, error) {
	opts := &requestOptions{}

	format, err := resolveFormat(params, accept)
	if err != nil {
		return nil, err
	}
	opts.format = format

	opts.limit = constants.DefaultLimit
	if format != constants.FormatJSON {
		opts.limit = 0
	}
	if raw, ok := firstParam(params, constants.ParamLimit); ok {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return nil, errors.NewValidationError(constants.ParamLimit, "must be a non-negative integer")
		}
		opts.limit = n
	}
	if raw, ok := firstParam(params, constants.ParamOffset); ok {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return nil, errors.NewValidationError(constants.ParamOffset, "must be a non-negative integer")
		}
		opts.offset = n
	}

	opts.orderBy = listParam(params, constants.ParamOrderBy)
	opts.includes = listParam(params, constants.ParamIncludes)
	opts.excludes = listParam(params, constants.ParamExcludes)
	opts.exactFields = listParam(params, constants.ParamExactFields)
	opts.visibilities = listParam(params, constants.ParamVisibilities)
	opts.useTitles = boolParam(params, constants.ParamUseTitles)
	opts.rawLists = boolParam(params, constants.ParamRawLists)
	return opts, nil
}

// resolveFormat negotiates the output format from the format parameter,
// falling back to the Accept header, defaulting to JSON.
func resolveFormat(params map[string][]string, accept string) (string, error) {
	if raw, ok := firstParam(params, constants.ParamFormat); ok {
		if constants.ContentTypeForFormat(raw) == "" {
			return "", errors.NewUnsupportedFormatError(raw)
		}
		return raw, nil
	}
	if accept == "" || accept == "*/*" {
		return constants.FormatJSON, nil
	}
	for _, part := range strings.Split(accept, ",") {
		mediaType := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if mediaType == "*/*" {
			return constants.FormatJSON, nil
		}
		if format := constants.FormatForContentType(mediaType); format != "" {
			return format, nil
		}
	}
	return "", errors.NewUnsupportedFormatError(accept)
}

func firstParam(params map[string][]string, key string) (string, bool) {
	values, ok := params[key]
	if !ok || len(values) == 0 || values[0] == "" {
		return "", false
	}
	return values[0], true
}

// listParam collects a repeatable parameter, splitting each value on
// commas.
func listParam(params map[string][]string, key string) []string {
	var out []string
	for _, raw := range params[key] {
		for _, part := range strings.Split(raw, constants.ListDelimiterURLParam) {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func boolParam(params map[string][]string, key string) bool {
	raw, ok := firstParam(params, key)
	if !ok {
		return false
	}
	switch strings.ToLower(raw) {
	case "true", "1", "yes":
		return true
	}
	return false
}
