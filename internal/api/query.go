package api

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/cleared-dev/bankrecon/internal/model"
	"github.com/cleared-dev/bankrecon/internal/store"
)

// EntryQuery encodes f as query parameters.
func EntryQuery(f store.EntryFilter) url.Values {
	q := url.Values{}
	setString(q, ParamBankCode, f.BankCode)
	setString(q, ParamAmountType, string(f.AmountType))
	setString(q, ParamMonth, f.Month)
	setString(q, ParamBranch, f.Branch)
	setString(q, ParamDescription, f.Description)
	setString(q, ParamStartDate, f.StartDate.String())
	setString(q, ParamEndDate, f.EndDate.String())
	setPaging(q, f.Limit, f.Offset)
	return q
}

// ParseEntryQuery decodes query parameters read through get.
func ParseEntryQuery(get func(string) string) (store.EntryFilter, error) {
	f := store.EntryFilter{
		BankCode:    get(ParamBankCode),
		AmountType:  model.AmountType(strings.ToUpper(get(ParamAmountType))),
		Month:       get(ParamMonth),
		Branch:      get(ParamBranch),
		Description: get(ParamDescription),
	}
	if f.AmountType != "" && !f.AmountType.Valid() {
		return f, &store.ValidationError{Field: ParamAmountType, Description: fmt.Sprintf("must be CR or DB, got %q", f.AmountType)}
	}
	if f.Month != "" && !store.ValidMonth(f.Month) {
		return f, &store.ValidationError{Field: ParamMonth, Description: fmt.Sprintf("must be YYYY-MM, got %q", f.Month)}
	}
	var err error
	if f.StartDate, err = dateParam(get, ParamStartDate); err != nil {
		return f, err
	}
	if f.EndDate, err = dateParam(get, ParamEndDate); err != nil {
		return f, err
	}
	f.Limit, f.Offset, err = pagingParams(get)
	return f, err
}

// InvoiceQuery encodes f as query parameters.
func InvoiceQuery(f store.InvoiceFilter) url.Values {
	q := url.Values{}
	if f.ExcludeFullyPaid {
		q.Set(ParamExcludeFullyPaid, "true")
	}
	if len(f.IncludeIDs) > 0 {
		q.Set(ParamIncludeIDs, strings.Join(f.IncludeIDs, ","))
	}
	setString(q, ParamStatus, f.Status)
	setString(q, ParamCustomerID, f.CustomerID)
	setString(q, ParamInvoiceNo, f.InvoiceNo)
	setString(q, ParamCompanyCode, f.CompanyCode)
	setString(q, ParamStartDate, f.StartDate.String())
	setString(q, ParamEndDate, f.EndDate.String())
	setPaging(q, f.Limit, f.Offset)
	return q
}

// ParseInvoiceQuery decodes query parameters read through get.
func ParseInvoiceQuery(get func(string) string) (store.InvoiceFilter, error) {
	f := store.InvoiceFilter{
		Status:      get(ParamStatus),
		CustomerID:  get(ParamCustomerID),
		InvoiceNo:   get(ParamInvoiceNo),
		CompanyCode: get(ParamCompanyCode),
	}
	if v := get(ParamExcludeFullyPaid); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, &store.ValidationError{Field: ParamExcludeFullyPaid, Description: fmt.Sprintf("not a boolean: %q", v)}
		}
		f.ExcludeFullyPaid = b
	}
	for _, invID := range strings.Split(get(ParamIncludeIDs), ",") {
		if invID = strings.TrimSpace(invID); invID != "" {
			f.IncludeIDs = append(f.IncludeIDs, invID)
		}
	}
	var err error
	if f.StartDate, err = dateParam(get, ParamStartDate); err != nil {
		return f, err
	}
	if f.EndDate, err = dateParam(get, ParamEndDate); err != nil {
		return f, err
	}
	f.Limit, f.Offset, err = pagingParams(get)
	return f, err
}

func setString(q url.Values, key, v string) {
	if v != "" {
		q.Set(key, v)
	}
}

func setPaging(q url.Values, limit, offset int) {
	if limit > 0 {
		q.Set(ParamLimit, strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set(ParamOffset, strconv.Itoa(offset))
	}
}

func dateParam(get func(string) string, key string) (model.Date, error) {
	v := get(key)
	if v == "" {
		return model.Date{}, nil
	}
	d, err := model.ParseDate(v)
	if err != nil {
		return d, &store.ValidationError{Field: key, Description: fmt.Sprintf("invalid date %q", v)}
	}
	return d, nil
}

func pagingParams(get func(string) string) (limit, offset int, err error) {
	if v := get(ParamLimit); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 0 {
			return 0, 0, &store.ValidationError{Field: ParamLimit, Description: fmt.Sprintf("not a non-negative integer: %q", v)}
		}
	}
	if v := get(ParamOffset); v != "" {
		if offset, err = strconv.Atoi(v); err != nil || offset < 0 {
			return 0, 0, &store.ValidationError{Field: ParamOffset, Description: fmt.Sprintf("not a non-negative integer: %q", v)}
		}
	}
	limit, offset = store.NormalizePaging(limit, offset)
	return limit, offset, nil
}
