package vehicle

import "strings"

type FilterOptions struct {
	FreeWords string
	Dealers   []string
	Stocks    []string
}

func containsAny(hay []string, needles []string) bool {
	for _, n := range needles {
		n = strings.ToLower(n)
		for _, h := range hay {
			if strings.Contains(strings.ToLower(h), n) {
				return true
			}
		}
	}
	return false
}

func Filter(vehicles []Vehicle, opt FilterOptions) []Vehicle {
	out := []Vehicle{}
	for _, v := range vehicles {
		if len(opt.Dealers) > 0 {
			if !containsAny([]string{v.Dealer}, opt.Dealers) {
				continue
			}
		}
		if len(opt.Stocks) > 0 {
			matched := false
			for _, s := range opt.Stocks {
				if strings.EqualFold(v.Stock, s) {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
		}
		// every free word must hit title, stock or dealer
		if opt.FreeWords != "" {
			ok := true
			for _, k := range strings.Fields(opt.FreeWords) {
				if !containsAny([]string{v.Title, v.Stock, v.Dealer}, []string{k}) {
					ok = false
					break
				}
			}
			if !ok {
				continue
			}
		}
		out = append(out, v)
	}
	return out
}
