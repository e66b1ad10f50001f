package formatting

// pluralize выбирает форму для 1, 2-4 и 5+ ("слот", "слота", "слотов")
func pluralize(count int, one, few, many string) string {
	if count%10 == 1 && count%100 != 11 {
		return one
	}
	if count%10 >= 2 && count%10 <= 4 && (count%100 < 10 || count%100 >= 20) {
		return few
	}
	return many
}

func PluralizeSlots(count int) string {
	return pluralize(count, "слот", "слота", "слотов")
}

func PluralizeVisits(count int) string {
	return pluralize(count, "визит", "визита", "визитов")
}
