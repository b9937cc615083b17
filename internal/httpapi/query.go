// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/oops"

	"github.com/holomush/accountd/internal/account"
)

// parseQuery reads filter, sort and paging parameters. Parsing is structural
// only; account.Query.Validate decides what is allowed.
//
//	?filter=email:contains:example&filter=is_active:eq:true&sort=-created_at&current=2&pageSize=20
func parseQuery(c *fiber.Ctx) (account.Query, error) {
	var q account.Query
	args := c.Context().QueryArgs()

	for i, raw := range args.PeekMulti("filter") {
		f, err := parseFilter(string(raw))
		if err != nil {
			return account.Query{}, oops.Code(account.CodeInvalidQuery).With("filter_index", i).Wrap(err)
		}
		q.Filters = append(q.Filters, f)
	}

	for _, raw := range args.PeekMulti("sort") {
		for _, key := range strings.Split(string(raw), ",") {
			key = strings.TrimSpace(key)
			if key == "" {
				continue
			}
			desc := strings.HasPrefix(key, "-")
			q.Sort = append(q.Sort, account.SortKey{Field: account.Field(strings.TrimPrefix(key, "-")), Desc: desc})
		}
	}

	var err error
	if q.Page, err = intParam(c, "current"); err != nil {
		return account.Query{}, err
	}
	if q.PageSize, err = intParam(c, "pageSize"); err != nil {
		return account.Query{}, err
	}
	return q, nil
}

func parseFilter(raw string) (account.Filter, error) {
	parts := strings.SplitN(raw, ":", 3)
	if len(parts) != 3 {
		return account.Filter{}, oops.Errorf("filter %q must be field:op:value", raw)
	}
	return account.Filter{Field: account.Field(parts[0]), Op: account.Op(parts[1]), Value: parts[2]}, nil
}

func intParam(c *fiber.Ctx, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, oops.Code(account.CodeInvalidQuery).With("param", name).Errorf("%s must be a non-negative integer", name)
	}
	return n, nil
}
