package repositories

// EventsPageSize размер страницы при постраничном чтении журнала переходов из БД.
const EventsPageSize = 100
